package notify

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestTurnSubject(t *testing.T) {
	subject := TurnSubject("camp-1")
	assert.Equal(t, "dm.campaign.camp-1.turn", subject)

	id, ok := CampaignFromSubject(subject)
	assert.True(t, ok)
	assert.Equal(t, "camp-1", id)
}

func TestCampaignFromSubjectRejects(t *testing.T) {
	tests := []struct {
		name    string
		subject string
	}{
		{name: "其他前缀", subject: "warehouse.loot"},
		{name: "缺少ID", subject: "dm.campaign..turn"},
		{name: "多级ID", subject: "dm.campaign.a.b.turn"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, ok := CampaignFromSubject(tt.subject)
			assert.False(t, ok)
		})
	}
}

func TestNilConnIsNoop(t *testing.T) {
	p := NewNatsPublisher(nil)
	assert.NoError(t, p.Publish(context.Background(), TurnSubject("c"), map[string]string{"a": "b"}))

	sub, err := p.Subscribe(SubjectAllTurns, func(string, []byte) {})
	assert.NoError(t, err)
	assert.Nil(t, sub)
}
