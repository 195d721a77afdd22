package service_test

import (
	"os/exec"
	"testing"

	"github.com/tutoralloc/allocator/internal/model"
	"github.com/tutoralloc/allocator/internal/service"

	"github.com/stretchr/testify/require"
)

func TestDecode(t *testing.T) {
	t.Parallel()
	sh, err := exec.LookPath("sh")
	if err != nil {
		t.Skipf("skipped, binary sh not available: %v", err)
	}

	type then struct {
		status  model.Status
		payload string
		message string
		err     error
	}

	var testCases = []struct {
		scenario string
		given    string
		then     then
	}{
		{
			scenario: "success",
			given:    `echo '{"success": true, "data": {"tutor": "Ann"}}'`,
			then:     then{status: model.StatusSucceeded, payload: `{"success": true, "data": {"tutor": "Ann"}}`},
		},
		{
			scenario: "success surrounded by whitespace",
			given:    `printf '\n  [1, 2]  \n\n'`,
			then:     then{status: model.StatusSucceeded, payload: `[1, 2]`},
		},
		{
			scenario: "success with stderr noise",
			given:    `echo 'progress 50%' >&2; echo '{"ok":1}'`,
			then:     then{status: model.StatusSucceeded, payload: `{"ok":1}`},
		},
		{
			scenario: "not json",
			given:    `echo 'not json'`,
			then:     then{status: model.StatusFailed, err: model.ErrDecode},
		},
		{
			scenario: "trailing data",
			given:    `echo '{"a":1} {"b":2}'`,
			then:     then{status: model.StatusFailed, message: "decoding worker output: unexpected data after JSON document", err: model.ErrDecode},
		},
		{
			scenario: "empty output",
			given:    `exit 0`,
			then:     then{status: model.StatusFailed, message: "decoding worker output: empty output", err: model.ErrDecode},
		},
		{
			scenario: "error field",
			given:    `echo '{"error": "bad input"}' >&2; exit 1`,
			then:     then{status: model.StatusFailed, message: "bad input", err: model.ErrWorkerFailure},
		},
		{
			scenario: "error field on last line",
			given:    `echo 'reading input' >&2; echo '{"success": false, "error": "no tutors"}' >&2; exit 1`,
			then:     then{status: model.StatusFailed, message: "no tutors", err: model.ErrWorkerFailure},
		},
		{
			scenario: "raw stderr",
			given:    `echo '  segfault ' >&2; exit 139`,
			then:     then{status: model.StatusFailed, message: "segfault", err: model.ErrWorkerFailure},
		},
		{
			scenario: "json without error field",
			given:    `echo '{"success": false}' >&2; exit 1`,
			then:     then{status: model.StatusFailed, message: `{"success": false}`, err: model.ErrWorkerFailure},
		},
		{
			scenario: "empty stderr",
			given:    `echo '{"ignored": true}'; exit 3`,
			then:     then{status: model.StatusFailed, message: "unknown failure", err: model.ErrWorkerFailure},
		},
	}

	for _, tt := range testCases {
		t.Run(tt.scenario, func(t *testing.T) {
			t.Parallel()
			runner := service.NewRunner()
			require.NoError(t, runner.Start(t.Context(), service.Command{Path: sh, Args: []string{"-c", tt.given}}))
			res, err := runner.Wait(t.Context())
			require.NoError(t, err)

			out := service.Decode("job-1", res)
			require.Equal(t, "job-1", out.JobID)
			require.Equal(t, tt.then.status, out.Status)
			require.Equal(t, res.ExitCode(), out.ExitCode)
			require.Equal(t, res.Started, out.Started)
			require.Equal(t, res.Stopped, out.Stopped)
			if tt.then.status == model.StatusSucceeded {
				require.NoError(t, out.Err)
				require.Empty(t, out.Message)
				require.JSONEq(t, tt.then.payload, string(out.Payload))
				return
			}
			require.Nil(t, out.Payload)
			require.ErrorIs(t, out.Err, tt.then.err)
			if tt.then.message != "" {
				require.Equal(t, tt.then.message, out.Message)
			}
		})
	}
}
