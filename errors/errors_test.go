package errors

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestIsNotFound(t *testing.T) {
	err := NewNotFoundError("foo", fmt.Errorf("bar"))
	require.True(t, IsNotFound(err))
}

func TestUnretriable(t *testing.T) {
	err := Unretriable(fmt.Errorf("bar"))
	require.True(t, IsUnretriable(err))
}

func TestResolveErrorIsUnretriable(t *testing.T) {
	err := NewResolveError("no playlist found", nil)
	require.True(t, IsResolveError(err))
	require.True(t, IsUnretriable(err))
}

func TestUploadError(t *testing.T) {
	err := NewUploadError("too large")
	require.Contains(t, err.Error(), "too large")
	var uploadErr UploadError
	require.ErrorAs(t, err, &uploadErr)
	require.Equal(t, "too large", uploadErr.Reason)
}
