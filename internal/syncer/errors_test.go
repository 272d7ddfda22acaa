package syncer

import (
	"errors"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestSyncError(t *testing.T) {
	cause := errors.New("timeout")
	err := error(stageErr(StageFetching, ErrSourceFetch, cause))

	assert.Equal(t, "fetching: timeout", err.Error())
	assert.ErrorIs(t, err, ErrSourceFetch)
	assert.ErrorIs(t, err, cause)
	assert.NotErrorIs(t, err, ErrStoreWrite)
}
