package repository

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/communityhub/internal/model"
)

func TestReverseMessages(t *testing.T) {
	ms := []model.Message{{ID: "a"}, {ID: "b"}, {ID: "c"}}
	reverseMessages(ms)
	assert.Equal(t, "c", ms[0].ID)
	assert.Equal(t, "b", ms[1].ID)
	assert.Equal(t, "a", ms[2].ID)

	var empty []model.Message
	reverseMessages(empty)

	one := []model.Message{{ID: "x"}}
	reverseMessages(one)
	assert.Equal(t, "x", one[0].ID)
}
