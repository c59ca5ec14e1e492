package backend

import (
	"context"
	"sync"
)

type sentMessage struct {
	Op        string
	ChatID    int64
	MessageID int
	Text      string
	Artifact  *MediaArtifact
}

// fakeSender records every call. Fail* make the matching operation fail.
type fakeSender struct {
	mu        sync.Mutex
	nextID    int
	log       []sentMessage
	failSend   error
	failMedia  error
	failAction error
	onMedia    func(artifact *MediaArtifact)
}

func (f *fakeSender) record(m sentMessage) {
	f.mu.Lock()
	f.log = append(f.log, m)
	f.mu.Unlock()
}

func (f *fakeSender) SendText(ctx context.Context, chatID int64, replyTo int, text string) (int, error) {
	if f.failSend != nil {
		return 0, f.failSend
	}
	f.mu.Lock()
	f.nextID++
	id := 100 + f.nextID
	f.mu.Unlock()
	f.record(sentMessage{Op: "text", ChatID: chatID, MessageID: id, Text: text})
	return id, nil
}

func (f *fakeSender) EditText(ctx context.Context, chatID int64, messageID int, text string) error {
	f.record(sentMessage{Op: "edit", ChatID: chatID, MessageID: messageID, Text: text})
	return nil
}

func (f *fakeSender) DeleteMessage(ctx context.Context, chatID int64, messageID int) error {
	f.record(sentMessage{Op: "delete", ChatID: chatID, MessageID: messageID})
	return nil
}

func (f *fakeSender) SendVideo(ctx context.Context, chatID int64, replyTo int, artifact *MediaArtifact) error {
	return f.media("video", chatID, artifact)
}

func (f *fakeSender) SendAudio(ctx context.Context, chatID int64, replyTo int, artifact *MediaArtifact) error {
	return f.media("audio", chatID, artifact)
}

func (f *fakeSender) media(op string, chatID int64, artifact *MediaArtifact) error {
	if f.onMedia != nil {
		f.onMedia(artifact)
	}
	if f.failMedia != nil {
		return f.failMedia
	}
	copied := *artifact
	f.record(sentMessage{Op: op, ChatID: chatID, Artifact: &copied})
	return nil
}

func (f *fakeSender) SendChatAction(ctx context.Context, chatID int64, action ChatAction) error {
	return f.failAction
}

func (f *fakeSender) Ops() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	ops := make([]string, 0, len(f.log))
	for _, m := range f.log {
		ops = append(ops, m.Op)
	}
	return ops
}

func (f *fakeSender) Last() sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.log) == 0 {
		return sentMessage{}
	}
	return f.log[len(f.log)-1]
}

func (f *fakeSender) Messages() []sentMessage {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]sentMessage(nil), f.log...)
}
