// Package bot connects the workflow engine to the Telegram Bot API.
package bot

import (
	"strings"

	"github.com/m3rciful/appealbot/core/telegram/callbacks"
	"github.com/m3rciful/appealbot/core/telegram/state"
	"github.com/m3rciful/appealbot/internal/workflow"

	tele "gopkg.in/telebot.v4"
)

// EventFrom converts a telebot update into a workflow event. It reports
// false for updates the workflow has no use for.
func EventFrom(c tele.Context) (workflow.Event, bool) {
	sender := c.Sender()
	if sender == nil {
		return workflow.Event{}, false
	}
	ev := workflow.Event{UserID: sender.ID}
	if chat := c.Chat(); chat != nil {
		ev.ChatID = chat.ID
	}

	if cb := c.Callback(); cb != nil {
		ev.Kind = state.EventCallback
		ev.CallbackID = cb.ID
		ev.Unique, ev.Payload = callbacks.ParseCallbackData(cb)
		if cb.Message != nil {
			ev.MessageID = cb.Message.ID
			if ev.ChatID == 0 && cb.Message.Chat != nil {
				ev.ChatID = cb.Message.Chat.ID
			}
		}
		return ev, true
	}

	msg := c.Message()
	if msg == nil {
		return workflow.Event{}, false
	}
	ev.MessageID = msg.ID
	ev.MessageIDs = []int{msg.ID}
	if ev.ChatID == 0 {
		ev.ChatID = sender.ID
	}

	if name, args, ok := parseCommand(msg.Text); ok {
		ev.Kind = state.EventCommand
		ev.Command = name
		ev.Text = args
		return ev, true
	}

	if att, ok := attachmentOf(msg); ok {
		ev.Kind = state.EventMedia
		ev.Text = msg.Caption
		ev.AlbumID = msg.AlbumID
		ev.Attachments = []workflow.Attachment{att}
		return ev, true
	}

	if msg.Document != nil {
		// Documents are not accepted as appeal media but still answer the
		// current step, so they travel as media without attachments.
		ev.Kind = state.EventMedia
		ev.Text = msg.Caption
		ev.AlbumID = msg.AlbumID
		return ev, true
	}

	ev.Kind = state.EventText
	ev.Text = msg.Text
	return ev, true
}

// parseCommand splits "/name@bot args" into name and args.
func parseCommand(text string) (string, string, bool) {
	if !strings.HasPrefix(text, "/") {
		return "", "", false
	}
	head, args, _ := strings.Cut(text[1:], " ")
	name, _, _ := strings.Cut(head, "@")
	if name == "" {
		return "", "", false
	}
	return strings.ToLower(name), strings.TrimSpace(args), true
}

// attachmentOf picks the media file of msg. Telebot keeps the largest photo size.
func attachmentOf(msg *tele.Message) (workflow.Attachment, bool) {
	switch {
	case msg.Photo != nil:
		return workflow.Attachment{Kind: workflow.Photo, FileID: msg.Photo.FileID}, true
	case msg.Video != nil:
		return workflow.Attachment{Kind: workflow.Video, FileID: msg.Video.FileID}, true
	case msg.Voice != nil:
		return workflow.Attachment{Kind: workflow.Voice, FileID: msg.Voice.FileID}, true
	case msg.VideoNote != nil:
		return workflow.Attachment{Kind: workflow.VideoNote, FileID: msg.VideoNote.FileID}, true
	}
	return workflow.Attachment{}, false
}
