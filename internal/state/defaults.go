package state

import (
	"time"

	"github.com/google/uuid"
	"golang.org/x/crypto/bcrypt"
)

// DefaultAdminEmail and DefaultAdminPassword seed the first admin account
// when no persisted state exists. The password must be changed after the
// first login.
const (
	DefaultAdminEmail    = "admin@profitcruiser.gg"
	DefaultAdminPassword = "ChangeMe123!"
)

func mustTime(value string) time.Time {
	t, err := time.Parse(time.RFC3339, value)
	if err != nil {
		panic(err)
	}
	return t
}

func floatPtr(v float64) *float64 { return &v }
func intPtr(v int) *int           { return &v }

// NewDefaultDocument synthesizes the deterministic starter document used
// when no state file exists yet: one admin account, two sample paid
// orders with their chats, seed views and an activity trail.
func NewDefaultDocument() *Document {
	now := time.Now().UTC()
	hash, err := bcrypt.GenerateFromPassword([]byte(DefaultAdminPassword), bcrypt.DefaultCost)
	if err != nil {
		panic(err)
	}
	robux := DefaultRobuxSettings()

	doc := &Document{
		Users: []User{
			{
				ID:           uuid.NewString(),
				Email:        DefaultAdminEmail,
				Username:     "Admin",
				PasswordHash: string(hash),
				Role:         RoleAdmin,
				CreatedAt:    now,
			},
		},
		Sessions:         []Session{},
		Orders:           sampleOrders(),
		Chats:            sampleChats(),
		ScriptVisibility: map[string]bool{},
		Views: map[string]int{
			"auto-rob-hub": 1580,
			"private-chat": 640,
		},
		ViewTimeline: []TimelineEntry{
			{Date: "2025-10-03", Count: 120},
			{Date: "2025-10-04", Count: 140},
			{Date: "2025-10-05", Count: 175},
			{Date: "2025-10-06", Count: 210},
			{Date: "2025-10-07", Count: 260},
			{Date: "2025-10-08", Count: 310},
			{Date: "2025-10-09", Count: 355},
		},
		Settings: Settings{
			SiteName:             "ProfitCruiser",
			SiteTagline:          "Premium Roblox Scripts",
			LogoURL:              "/logo.svg",
			ChatEnabled:          true,
			LoggingEnabled:       true,
			NotificationsEnabled: true,
		},
		Metrics:       SiteMetrics{ChatResponseMinutes: 10},
		Scripts:       []Script{},
		RobuxSettings: &robux,
	}

	for _, msg := range []struct {
		at      string
		message string
	}{
		{"2025-10-09T09:43:00Z", "New payment from Alex#123 ($7.99)"},
		{"2025-10-09T09:45:00Z", "Chat opened (Order #30219)"},
		{"2025-10-09T09:46:00Z", "Message sent by Admin"},
		{"2025-10-09T09:50:00Z", `Script "Auto Rob Hub" published`},
	} {
		doc.ActivityLog = append(doc.ActivityLog, ActivityEntry{
			ID:        uuid.NewString(),
			Timestamp: mustTime(msg.at),
			Message:   msg.message,
		})
	}

	return doc
}

// DefaultRobuxSettings returns the robux purchase bounds used until an
// admin saves their own.
func DefaultRobuxSettings() RobuxSettings {
	return RobuxSettings{
		MinRobux:         400,
		MaxRobux:         20000,
		StepRobux:        200,
		QuickSelectPacks: []int{800, 2000, 5000, 10000, 20000},
		BaseMarketPrice:  0.0039,
		Markup:           1.6,
	}
}

func sampleOrders() []Order {
	return []Order{
		{
			ID:        "#30219",
			UserID:    "sample-alex",
			Username:  "Alex#123",
			Amount:    7.99,
			Currency:  "USD",
			Product:   "Auto Rob Hub",
			Status:    OrderStatusPaid,
			CreatedAt: mustTime("2025-10-09T09:10:00Z"),
			Payment: &Payment{
				Provider:      "demo",
				ProviderLabel: "Demo Checkout",
				Status:        "finished",
				PayCurrency:   "USD",
				PayAmount:     floatPtr(7.99),
				ActuallyPaid:  floatPtr(7.99),
				CreatedAt:     mustTime("2025-10-09T09:10:00Z"),
				UpdatedAt:     mustTime("2025-10-09T09:10:00Z"),
			},
		},
		{
			ID:        "#30220",
			UserID:    "sample-julian",
			Username:  "Julian",
			Amount:    14.5,
			Currency:  "USD",
			Product:   "Private Chat",
			Status:    OrderStatusPaid,
			CreatedAt: mustTime("2025-10-09T09:15:00Z"),
			Payment: &Payment{
				Provider:      "demo",
				ProviderLabel: "Demo Checkout",
				Status:        "finished",
				PayCurrency:   "USD",
				PayAmount:     floatPtr(14.5),
				ActuallyPaid:  floatPtr(14.5),
				CreatedAt:     mustTime("2025-10-09T09:15:00Z"),
				UpdatedAt:     mustTime("2025-10-09T09:15:00Z"),
			},
		},
	}
}

func sampleChats() []Chat {
	return []Chat{
		{
			ID:              uuid.NewString(),
			OrderID:         "#30219",
			UserID:          "sample-alex",
			Username:        "Alex#123",
			Status:          ChatStatusOpen,
			CreatedAt:       mustTime("2025-10-09T09:45:00Z"),
			LastActivityAt:  mustTime("2025-10-09T09:46:00Z"),
			ResponseMinutes: intPtr(12),
			Messages: []Message{
				{ID: uuid.NewString(), Author: "system", Body: "Chat opened for order #30219", CreatedAt: mustTime("2025-10-09T09:45:00Z")},
				{ID: uuid.NewString(), Author: "system", Body: RobuxChatIntroMessage, CreatedAt: mustTime("2025-10-09T09:45:10Z")},
				{ID: uuid.NewString(), Author: "Alex#123", Body: "Hi, just placed an order! Let me know when you are ready.", CreatedAt: mustTime("2025-10-09T09:45:30Z")},
				{ID: uuid.NewString(), Author: "admin", Body: "Thanks Alex! I will deliver within the hour. Stay online in your VIP server.", CreatedAt: mustTime("2025-10-09T09:46:00Z")},
			},
		},
		{
			ID:              uuid.NewString(),
			OrderID:         "#30220",
			UserID:          "sample-julian",
			Username:        "Julian",
			Status:          ChatStatusClosed,
			CreatedAt:       mustTime("2025-10-09T09:45:00Z"),
			LastActivityAt:  mustTime("2025-10-09T10:05:00Z"),
			ResponseMinutes: intPtr(8),
			Messages: []Message{
				{ID: uuid.NewString(), Author: "system", Body: "Chat opened for order #30220", CreatedAt: mustTime("2025-10-09T09:45:00Z")},
				{ID: uuid.NewString(), Author: "system", Body: RobuxChatIntroMessage, CreatedAt: mustTime("2025-10-09T09:45:10Z")},
				{ID: uuid.NewString(), Author: "Julian", Body: "Looking forward to the private coaching session.", CreatedAt: mustTime("2025-10-09T09:47:00Z")},
				{ID: uuid.NewString(), Author: "admin", Body: "Scheduled for tonight 20:00 CET. See you there!", CreatedAt: mustTime("2025-10-09T09:48:00Z")},
			},
		},
	}
}

// RobuxChatIntroMessage is the second seeded system message of every
// support chat opened for a new order.
const RobuxChatIntroMessage = "Follow these instructions to add a gamepass: https://www.youtube.com/watch?v=Hl9QPHIXWHk"
