package jobs

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/hibiken/asynq"

	_ "github.com/haven-id/haven-id/testing"
)

func TestNewSendEmailTask(t *testing.T) {
	task, err := NewSendEmailTask(SendEmailPayload{
		To: "ann@example.com", Subject: "Hi", Body: "Hello",
	})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if task.Type() != TaskTypeSendEmail {
		t.Fatalf("task type = %s", task.Type())
	}
}

func TestSMTPSenderHandle(t *testing.T) {
	var (
		gotAddr string
		gotFrom string
		gotTo   []string
		gotMsg  []byte
	)
	sender := NewSMTPSender("relay.local", 1025, "no-reply@haven.local", nil)
	sender.send = func(addr, from string, to []string, msg []byte) error {
		gotAddr, gotFrom, gotTo, gotMsg = addr, from, to, msg
		return nil
	}

	task, err := NewSendEmailTask(SendEmailPayload{
		To: "ann@example.com", Subject: "Verify your account", Body: "Visit the link.",
	})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := sender.Handle(context.Background(), task); err != nil {
		t.Fatalf("handle: %v", err)
	}

	if gotAddr != "relay.local:1025" {
		t.Fatalf("relay addr = %s", gotAddr)
	}
	if gotFrom != "no-reply@haven.local" {
		t.Fatalf("from = %s", gotFrom)
	}
	if len(gotTo) != 1 || gotTo[0] != "ann@example.com" {
		t.Fatalf("to = %v", gotTo)
	}
	msg := string(gotMsg)
	if !strings.Contains(msg, "Subject: Verify your account\r\n") {
		t.Fatalf("message missing subject header:\n%s", msg)
	}
	if !strings.Contains(msg, "Visit the link.") {
		t.Fatalf("message missing body:\n%s", msg)
	}
}

func TestSMTPSenderHandleMalformedPayload(t *testing.T) {
	sender := NewSMTPSender("relay.local", 1025, "no-reply@haven.local", nil)
	sender.send = func(addr, from string, to []string, msg []byte) error {
		t.Fatal("send must not run for a malformed payload")
		return nil
	}

	err := sender.Handle(context.Background(), asynq.NewTask(TaskTypeSendEmail, []byte("{not json")))
	if !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("got %v, want SkipRetry", err)
	}

	empty, err2 := NewSendEmailTask(SendEmailPayload{})
	if err2 != nil {
		t.Fatalf("new task: %v", err2)
	}
	if err := sender.Handle(context.Background(), empty); !errors.Is(err, asynq.SkipRetry) {
		t.Fatalf("empty recipient: got %v, want SkipRetry", err)
	}
}

func TestSMTPSenderHandleDeliveryFailureRetries(t *testing.T) {
	sender := NewSMTPSender("relay.local", 1025, "no-reply@haven.local", nil)
	boom := errors.New("connection refused")
	sender.send = func(addr, from string, to []string, msg []byte) error {
		return boom
	}

	task, err := NewSendEmailTask(SendEmailPayload{To: "ann@example.com", Subject: "Hi", Body: "Hello"})
	if err != nil {
		t.Fatalf("new task: %v", err)
	}
	if err := sender.Handle(context.Background(), task); !errors.Is(err, boom) {
		t.Fatalf("delivery failure must propagate for retry, got %v", err)
	}
}
