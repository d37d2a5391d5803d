package streamlog

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/aws/aws-lambda-go/events"
)

func newTestHandler(buf *bytes.Buffer) *Handler {
	logger := slog.New(slog.NewTextHandler(buf, nil))
	return NewHandler(logger)
}

func TestNewHandler_NilLoggerFallsBackToDefault(t *testing.T) {
	h := NewHandler(nil)
	if h == nil || h.logger == nil {
		t.Fatal("expected a non-nil handler with a default logger")
	}
}

func TestProcessRecord_IgnoresNonMainItems(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)

	record := events.DynamoDBEventRecord{
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute("un#alice"),
			},
		},
	}

	if err := h.processRecord(context.Background(), record); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}
	if buf.Len() != 0 {
		t.Errorf("expected no audit line for a secondary item, got %q", buf.String())
	}
}

func TestProcessRecord_InsertLogsAccountCreated(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)

	record := events.DynamoDBEventRecord{
		EventName: "INSERT",
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"pk":         events.NewStringAttribute("ai#acc-1"),
				"account_id": events.NewStringAttribute("acc-1"),
				"user_name":  events.NewStringAttribute("alice"),
				"version":    events.NewNumberAttribute("0"),
			},
		},
	}

	if err := h.processRecord(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "account created") || !strings.Contains(out, "acc-1") {
		t.Errorf("expected a created audit line mentioning acc-1, got %q", out)
	}
}

func TestProcessRecord_ModifyReportsChangedUniqueAttributes(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)

	record := events.DynamoDBEventRecord{
		EventName: "MODIFY",
		Change: events.DynamoDBStreamRecord{
			OldImage: map[string]events.DynamoDBAttributeValue{
				"pk":         events.NewStringAttribute("ai#acc-1"),
				"account_id": events.NewStringAttribute("acc-1"),
				"user_name":  events.NewStringAttribute("bob"),
				"version":    events.NewNumberAttribute("3"),
			},
			NewImage: map[string]events.DynamoDBAttributeValue{
				"pk":         events.NewStringAttribute("ai#acc-1"),
				"account_id": events.NewStringAttribute("acc-1"),
				"user_name":  events.NewStringAttribute("bobby"),
				"version":    events.NewNumberAttribute("4"),
			},
		},
	}

	if err := h.processRecord(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	out := buf.String()
	if !strings.Contains(out, "account updated") || !strings.Contains(out, "user_name") {
		t.Errorf("expected an updated audit line naming user_name as changed, got %q", out)
	}
}

func TestProcessRecord_RemoveLogsAccountDeleted(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)

	record := events.DynamoDBEventRecord{
		EventName: "REMOVE",
		Change: events.DynamoDBStreamRecord{
			OldImage: map[string]events.DynamoDBAttributeValue{
				"pk":         events.NewStringAttribute("ai#acc-1"),
				"account_id": events.NewStringAttribute("acc-1"),
				"user_name":  events.NewStringAttribute("alice"),
				"version":    events.NewNumberAttribute("5"),
			},
		},
	}

	if err := h.processRecord(context.Background(), record); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(buf.String(), "account deleted") {
		t.Errorf("expected a deleted audit line, got %q", buf.String())
	}
}

func TestProcessRecord_UnknownEventNameErrors(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)

	record := events.DynamoDBEventRecord{
		EventName: "UNKNOWN",
		Change: events.DynamoDBStreamRecord{
			NewImage: map[string]events.DynamoDBAttributeValue{
				"pk": events.NewStringAttribute("ai#acc-1"),
			},
		},
	}

	if err := h.processRecord(context.Background(), record); err == nil {
		t.Fatal("expected an error for an unrecognized event name")
	}
}

func TestHandleEvent_StopsAndPropagatesOnFirstError(t *testing.T) {
	var buf bytes.Buffer
	h := newTestHandler(&buf)

	event := events.DynamoDBEvent{
		Records: []events.DynamoDBEventRecord{
			{
				EventID:   "1",
				EventName: "BOGUS",
				Change: events.DynamoDBStreamRecord{
					NewImage: map[string]events.DynamoDBAttributeValue{
						"pk": events.NewStringAttribute("ai#acc-1"),
					},
				},
			},
		},
	}

	if err := h.HandleEvent(context.Background(), event); err == nil {
		t.Fatal("expected HandleEvent to propagate the processing error")
	}
}

func TestGetStringAttr_MissingKey(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"other": events.NewStringAttribute("value"),
	}
	if got := getStringAttr(image, "name"); got != "" {
		t.Errorf("expected empty string for missing key, got %q", got)
	}
}

func TestGetNumberAttr_WrongType(t *testing.T) {
	image := map[string]events.DynamoDBAttributeValue{
		"version": events.NewStringAttribute("not-a-number"),
	}
	if got := getNumberAttr(image, "version"); got != 0 {
		t.Errorf("expected 0 for non-number attribute, got %d", got)
	}
}

func TestChangedUniqueAttrs_DetectsEmailAndPhone(t *testing.T) {
	old := map[string]events.DynamoDBAttributeValue{
		"email": events.NewStringAttribute("a@example.com"),
		"phone": events.NewStringAttribute(""),
	}
	new_ := map[string]events.DynamoDBAttributeValue{
		"email": events.NewStringAttribute("b@example.com"),
		"phone": events.NewStringAttribute("+15551234"),
	}
	changed := changedUniqueAttrs(old, new_)
	if len(changed) != 2 {
		t.Fatalf("expected 2 changed attributes, got %v", changed)
	}
}
