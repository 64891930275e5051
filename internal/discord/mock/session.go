// Package mock provides test doubles for Discord interaction and message
// testing.
package mock

import (
	"strconv"

	"github.com/bwmarrin/discordgo"
)

// InteractionResponder records interaction responses for test assertions.
// It satisfies discord.Responder.
type InteractionResponder struct {
	// Responses records all InteractionRespond calls.
	Responses []*discordgo.InteractionResponse

	// FollowUps records all FollowupMessageCreate calls.
	FollowUps []*discordgo.WebhookParams

	// Err is returned by InteractionRespond and FollowupMessageCreate
	// when non-nil, allowing error injection.
	Err error
}

// InteractionRespond records the response and returns the configured error.
func (m *InteractionResponder) InteractionRespond(i *discordgo.Interaction, resp *discordgo.InteractionResponse, options ...discordgo.RequestOption) error {
	m.Responses = append(m.Responses, resp)
	return m.Err
}

// FollowupMessageCreate records the follow-up and returns a stub message.
func (m *InteractionResponder) FollowupMessageCreate(i *discordgo.Interaction, wait bool, params *discordgo.WebhookParams, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	m.FollowUps = append(m.FollowUps, params)
	if m.Err != nil {
		return nil, m.Err
	}
	return &discordgo.Message{ID: "mock-followup"}, nil
}

// LastResponse returns the most recently recorded response, or nil.
func (m *InteractionResponder) LastResponse() *discordgo.InteractionResponse {
	if len(m.Responses) == 0 {
		return nil
	}
	return m.Responses[len(m.Responses)-1]
}

// LastFollowUp returns the most recently recorded follow-up, or nil.
func (m *InteractionResponder) LastFollowUp() *discordgo.WebhookParams {
	if len(m.FollowUps) == 0 {
		return nil
	}
	return m.FollowUps[len(m.FollowUps)-1]
}

// Reset clears all recorded interactions and errors.
func (m *InteractionResponder) Reset() {
	m.Responses = nil
	m.FollowUps = nil
	m.Err = nil
}

// SentMessage is one recorded ChannelMessageSend call.
type SentMessage struct {
	ChannelID string
	Content   string
}

// EditedMessage is one recorded ChannelMessageEdit call.
type EditedMessage struct {
	ChannelID string
	MessageID string
	Content   string
}

// MessageSender records channel message traffic for test assertions.
// It satisfies discord.Sender.
type MessageSender struct {
	Sent    []SentMessage
	Edits   []EditedMessage
	Typing  []string
	SendErr error
	EditErr error

	nextID int
}

// ChannelMessageSend records the message and returns a stub with a
// deterministic ID ("msg-1", "msg-2", ...).
func (m *MessageSender) ChannelMessageSend(channelID string, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.SendErr != nil {
		return nil, m.SendErr
	}
	m.Sent = append(m.Sent, SentMessage{ChannelID: channelID, Content: content})
	m.nextID++
	return &discordgo.Message{ID: "msg-" + strconv.Itoa(m.nextID), ChannelID: channelID}, nil
}

// ChannelMessageEdit records the edit and returns a stub message.
func (m *MessageSender) ChannelMessageEdit(channelID, messageID, content string, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	if m.EditErr != nil {
		return nil, m.EditErr
	}
	m.Edits = append(m.Edits, EditedMessage{ChannelID: channelID, MessageID: messageID, Content: content})
	return &discordgo.Message{ID: messageID, ChannelID: channelID}, nil
}

// ChannelTyping records the typing indicator request.
func (m *MessageSender) ChannelTyping(channelID string, options ...discordgo.RequestOption) error {
	m.Typing = append(m.Typing, channelID)
	return nil
}

// LastEdit returns the most recently recorded edit, or nil.
func (m *MessageSender) LastEdit() *EditedMessage {
	if len(m.Edits) == 0 {
		return nil
	}
	return &m.Edits[len(m.Edits)-1]
}
