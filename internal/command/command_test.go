package command

import (
	"context"
	"runtime"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRunCapturesStdoutAndExitCode(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var r Runner
	res, err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "echo hi; exit 0")
	require.NoError(t, err)
	assert.True(t, res.Success())
	assert.Equal(t, 0, res.ExitCode)
	assert.Equal(t, "hi\n", res.Stdout)
}

func TestRunReportsNonZeroExitWithoutError(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var r Runner
	res, err := r.Run(context.Background(), t.TempDir(), "sh", "-c", "echo boom >&2; exit 3")
	require.NoError(t, err)
	assert.False(t, res.Success())
	assert.Equal(t, 3, res.ExitCode)
	assert.Equal(t, "boom\n", res.Stderr)
}

func TestRunBinaryNotFoundReturnsError(t *testing.T) {
	var r Runner
	_, err := r.Run(context.Background(), t.TempDir(), "ralph-command-test-no-such-binary")
	require.Error(t, err)
}

func TestStreamTolersatesNonJSONLines(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var r Runner
	script := `read prompt; echo "$prompt"; echo '{"type":"result"}'; echo "not json at all"`
	lines, errc := r.Stream(context.Background(), t.TempDir(), "do the thing\n", "sh", "-c", script)

	var got []Line
	for l := range lines {
		got = append(got, l)
	}
	err := <-errc
	require.NoError(t, err)

	require.Len(t, got, 3)
	assert.Equal(t, "do the thing", got[0].Raw)
	assert.False(t, got[0].JSON)
	assert.True(t, got[1].JSON)
	assert.Equal(t, `{"type":"result"}`, got[1].Raw)
	assert.False(t, got[2].JSON)
}

func TestStreamExitErrorSurfacesStderr(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var r Runner
	lines, errc := r.Stream(context.Background(), t.TempDir(), "", "sh", "-c", "echo broke >&2; exit 1")

	for range lines {
	}
	err := <-errc
	require.Error(t, err)
	assert.Contains(t, err.Error(), "broke")
}

func TestStreamCancellationStopsProcess(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("uses sh")
	}
	var r Runner
	ctx, cancel := context.WithCancel(context.Background())
	lines, errc := r.Stream(ctx, t.TempDir(), "", "sh", "-c", "sleep 5")

	cancel()

	done := make(chan struct{})
	go func() {
		for range lines {
		}
		<-errc
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(3 * time.Second):
		t.Fatal("Stream did not stop after cancellation")
	}
}
