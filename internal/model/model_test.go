package model

import (
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/stretchr/testify/assert"
)

func TestNormalizeTags(t *testing.T) {
	tests := []struct {
		in   []string
		want []string
	}{
		{nil, nil},
		{[]string{"", "  "}, nil},
		{[]string{"dining", " dining ", "coffee"}, []string{"coffee", "dining"}},
		{[]string{"b", "a", "b"}, []string{"a", "b"}},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NormalizeTags(tt.in), "NormalizeTags(%q)", tt.in)
	}
}

func TestUnionTags(t *testing.T) {
	got := UnionTags([]string{"dining"}, []string{"restaurants", "dining"})
	assert.Equal(t, []string{"dining", "restaurants"}, got)

	assert.Equal(t, []string{"dining"}, UnionTags([]string{"dining"}, nil))
}

func TestDay(t *testing.T) {
	loc := time.FixedZone("UTC-7", -7*3600)
	in := time.Date(2025, 10, 3, 23, 30, 0, 0, loc)
	got := Day(in)
	assert.Equal(t, time.Date(2025, 10, 3, 0, 0, 0, 0, time.UTC), got)
	assert.Nil(t, DayPtr(nil))
}

func TestTransactionClone(t *testing.T) {
	parent := uuid.New()
	now := time.Now()
	orig := Transaction{
		Tags:                []string{"a"},
		ExternalIDs:         map[string]string{"simplefin": "TRN-1"},
		DeletedAt:           &now,
		ParentTransactionID: &parent,
	}
	c := orig.Clone()
	c.Tags[0] = "b"
	c.ExternalIDs["simplefin"] = "TRN-2"
	*c.DeletedAt = now.Add(time.Hour)
	*c.ParentTransactionID = uuid.New()

	assert.Equal(t, "a", orig.Tags[0])
	assert.Equal(t, "TRN-1", orig.ExternalID("simplefin"))
	assert.Equal(t, now, *orig.DeletedAt)
	assert.Equal(t, parent, *orig.ParentTransactionID)
	assert.True(t, orig.IsDeleted())
	assert.True(t, orig.IsSplitChild())
}

func TestUpsertOpString(t *testing.T) {
	assert.Equal(t, "insert", OpInsert.String())
	assert.Equal(t, "update", OpUpdate.String())
}
