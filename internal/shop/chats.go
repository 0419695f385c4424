package shop

import (
	"fmt"
	"math"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"

	"profitcruiser/internal/state"
)

// ChatWithOrder pairs a chat with its order for the admin listing.
type ChatWithOrder struct {
	state.Chat
	Order *state.Order `json:"order"`
}

// openAdminChat opens the support chat for a paid order, addressed to
// the first admin account. It is idempotent per order and must be called
// with the document already locked by the store. Returns nil when no
// admin exists.
func (s *Service) openAdminChat(doc *state.Document, order *state.Order) *state.Chat {
	if existing := doc.FindChatByOrder(order.ID); existing != nil {
		return existing
	}
	admin := firstAdmin(doc)
	if admin == nil {
		s.logger.Warn("no admin account, skipping chat open", "order_id", order.ID)
		return nil
	}

	now := time.Now().UTC()
	amount := strconv.FormatFloat(order.Amount, 'f', -1, 64)
	chat := state.Chat{
		ID:             uuid.NewString(),
		OrderID:        order.ID,
		UserID:         order.UserID,
		Username:       order.Username,
		AdminID:        admin.ID,
		Status:         state.ChatStatusOpen,
		CreatedAt:      now,
		LastActivityAt: now,
		Messages: []state.Message{
			{
				ID:        uuid.NewString(),
				Author:    "system",
				Body:      fmt.Sprintf("Payment confirmed for order %s - Chat opened with admins", order.ID),
				CreatedAt: now,
			},
			{
				ID:        uuid.NewString(),
				Author:    "system",
				Body:      fmt.Sprintf("Payment of %s %s has been confirmed. Please process the Robux delivery for %s.", amount, order.Currency, order.Username),
				CreatedAt: now,
			},
		},
	}
	doc.Chats = append(doc.Chats, chat)
	doc.AppendActivity(fmt.Sprintf("Admin chat opened automatically for paid order %s (%s)", order.ID, order.Username))
	return &doc.Chats[len(doc.Chats)-1]
}

// appendPlainChat opens the buyer-facing chat for an order that is not
// paid yet. Must be called with the document locked by the store.
func appendPlainChat(doc *state.Document, orderID, userID, username string) *state.Chat {
	if existing := doc.FindChatByOrder(orderID); existing != nil {
		return existing
	}
	now := time.Now().UTC()
	chat := state.Chat{
		ID:             uuid.NewString(),
		OrderID:        orderID,
		UserID:         userID,
		Username:       username,
		Status:         state.ChatStatusOpen,
		CreatedAt:      now,
		LastActivityAt: now,
		Messages: []state.Message{
			{
				ID:        uuid.NewString(),
				Author:    "system",
				Body:      fmt.Sprintf("Chat opened for order %s", orderID),
				CreatedAt: now,
			},
			{
				ID:        uuid.NewString(),
				Author:    "system",
				Body:      state.RobuxChatIntroMessage,
				CreatedAt: now,
			},
		},
	}
	doc.Chats = append(doc.Chats, chat)
	return &doc.Chats[len(doc.Chats)-1]
}

func firstAdmin(doc *state.Document) *state.User {
	for i := range doc.Users {
		if doc.Users[i].Role == state.RoleAdmin {
			return &doc.Users[i]
		}
	}
	return nil
}

// ListChatsForUser returns the caller's chats.
func (s *Service) ListChatsForUser(userID string) []state.Chat {
	var chats []state.Chat
	s.store.View(func(doc *state.Document) {
		for i := range doc.Chats {
			if doc.Chats[i].UserID == userID {
				chats = append(chats, doc.Chats[i])
			}
		}
	})
	return chats
}

// AdminChats returns every chat together with its order.
func (s *Service) AdminChats() []ChatWithOrder {
	var chats []ChatWithOrder
	s.store.View(func(doc *state.Document) {
		for i := range doc.Chats {
			entry := ChatWithOrder{Chat: doc.Chats[i]}
			if order := doc.FindOrder(doc.Chats[i].OrderID); order != nil {
				orderCopy := *order
				entry.Order = &orderCopy
			}
			chats = append(chats, entry)
		}
	})
	return chats
}

// AdminChat returns a single chat by id.
func (s *Service) AdminChat(id string) (*state.Chat, error) {
	var found *state.Chat
	s.store.View(func(doc *state.Document) {
		if chat := doc.FindChat(id); chat != nil {
			chatCopy := *chat
			found = &chatCopy
		}
	})
	if found == nil {
		return nil, ErrChatNotFound
	}
	return found, nil
}

// PostAdminMessage appends an admin reply to a chat. The first reply
// fixes the chat's response time.
func (s *Service) PostAdminMessage(chatID, body string) (*state.Chat, error) {
	body = strings.TrimSpace(body)
	if body == "" {
		return nil, ErrEmptyMessage
	}
	var result *state.Chat
	err := s.store.Update(func(doc *state.Document) error {
		chat := doc.FindChat(chatID)
		if chat == nil {
			return ErrChatNotFound
		}
		now := time.Now().UTC()
		chat.Messages = append(chat.Messages, state.Message{
			ID:        uuid.NewString(),
			Author:    "admin",
			Body:      body,
			CreatedAt: now,
		})
		chat.LastActivityAt = now
		if chat.ResponseMinutes == nil {
			minutes := int(math.Round(now.Sub(chat.CreatedAt).Minutes()))
			chat.ResponseMinutes = &minutes
		}
		doc.AppendActivity(fmt.Sprintf("Admin replied to chat %s (%s)", chat.OrderID, chat.Username))
		chatCopy := *chat
		result = &chatCopy
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}

// SetChatStatus opens or closes a chat.
func (s *Service) SetChatStatus(chatID, status string) (*state.Chat, error) {
	status = strings.ToLower(strings.TrimSpace(status))
	if status != state.ChatStatusOpen && status != state.ChatStatusClosed {
		return nil, ErrInvalidChatStatus
	}
	var result *state.Chat
	err := s.store.Update(func(doc *state.Document) error {
		chat := doc.FindChat(chatID)
		if chat == nil {
			return ErrChatNotFound
		}
		chat.Status = status
		chat.LastActivityAt = time.Now().UTC()
		verb := "closed"
		if status == state.ChatStatusOpen {
			verb = "reopened"
		}
		doc.AppendActivity(fmt.Sprintf("Admin %s chat %s (%s)", verb, chat.OrderID, chat.Username))
		chatCopy := *chat
		result = &chatCopy
		return nil
	})
	if err != nil {
		return nil, err
	}
	return result, nil
}
