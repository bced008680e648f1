package types

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRowRecordAccessors(t *testing.T) {
	row := RowRecord{IDKey: "PR1700000000000001", SelectKey: true, "Kto:": "Ján"}
	assert.Equal(t, "PR1700000000000001", row.ID())
	assert.True(t, row.Selected())

	assert.Equal(t, "", RowRecord{}.ID())
	assert.False(t, RowRecord{SelectKey: "yes"}.Selected(), "non-bool flag is not a selection")
}

func TestRowRecordCloneIsIndependent(t *testing.T) {
	row := RowRecord{IDKey: "UV1", "Koľko ešte dlžím?": 1200.0}
	cp := row.Clone()
	cp["Koľko ešte dlžím?"] = 0.0

	assert.Equal(t, 1200.0, row["Koľko ešte dlžím?"])
	assert.Equal(t, "UV1", cp.ID())
}

func TestStoreErrorUnwraps(t *testing.T) {
	cause := errors.New("connection reset by peer")
	err := fmt.Errorf("save: %w", &StoreError{Op: "insert", CID: "A001", Err: cause})

	var se *StoreError
	require.True(t, errors.As(err, &se))
	assert.Equal(t, "insert", se.Op)
	assert.ErrorIs(t, err, cause)
	assert.Contains(t, err.Error(), `store insert "A001"`)

	noCID := &StoreError{Op: "list", Err: cause}
	assert.Equal(t, "store list: connection reset by peer", noCID.Error())
}

func TestCompletionErrorMessage(t *testing.T) {
	err := &CompletionError{Status: 429, Body: "quota exceeded"}
	assert.Equal(t, "completion failed: status 429: quota exceeded", err.Error())
}
