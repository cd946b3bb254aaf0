package runner

import (
	"testing"

	"github.com/stretchr/testify/assert"

	"github.com/silfenpath/adk/event"
)

func textEvent(text string) event.Event {
	return event.Event{Content: &event.Content{Role: event.RoleUser, Parts: []event.Part{event.TextPart(text)}}}
}

func TestContentsForTurnKeepsAllEventsWithoutCompaction(t *testing.T) {
	events := []event.Event{textEvent("a"), textEvent("b"), textEvent("c")}
	got := contentsForTurn(events)
	assert.Len(t, got, 3)
}

func TestContentsForTurnCollapsesCompactedRange(t *testing.T) {
	events := []event.Event{textEvent("a"), textEvent("b"), textEvent("c")}
	summary := event.Event{
		Content: &event.Content{Role: event.RoleModel, Parts: []event.Part{event.TextPart("summary of a,b,c")}},
		Actions: &event.Actions{Compaction: &event.CompactionInfo{
			CompactedContent: event.Content{Role: event.RoleModel, Parts: []event.Part{event.TextPart("summary of a,b,c")}},
			StartEventIndex:  0,
			EndEventIndex:    2,
		}},
	}
	events = append(events, summary, textEvent("d"))

	got := contentsForTurn(events)
	want := []string{"summary of a,b,c", "d"}
	var texts []string
	for _, c := range got {
		texts = append(texts, c.Text())
	}
	assert.Equal(t, want, texts)
}

func TestContentsForTurnDropsPartialEvents(t *testing.T) {
	events := []event.Event{textEvent("a"), {Partial: true, Content: &event.Content{Role: event.RoleModel, Parts: []event.Part{event.TextPart("chunk")}}}}
	got := contentsForTurn(events)
	assert.Len(t, got, 1)
}
