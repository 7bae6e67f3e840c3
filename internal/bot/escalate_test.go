package bot

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestNeedsEscalation(t *testing.T) {
	tests := []struct {
		content string
		want    bool
	}{
		{"I want a refund for my last order", true},
		{"REFUND NOW", true},
		{"There is a problem with billing on my account", true},
		{"my account locked me out", true},
		{"I need to speak to human please", true},
		{"this is URGENT", true},
		{"can I talk to someone about my plan?", true},
		{"I will sue you", true},
		{"how do I change my avatar color?", false},
		{"what channels are available?", false},
		{"", false},
	}
	for _, tt := range tests {
		assert.Equal(t, tt.want, NeedsEscalation(tt.content), "content: %q", tt.content)
	}
}
