package state

import (
	"strings"
	"time"

	"github.com/google/uuid"
)

// Order statuses as normalized by the payment layer. An unrecognized
// provider status is stored verbatim until the next reconciliation
// classifies it, so Order.Status stays a plain string.
const (
	OrderStatusPending = "pending"
	OrderStatusPaid    = "paid"
	OrderStatusFailed  = "failed"
)

const (
	ChatStatusOpen   = "open"
	ChatStatusClosed = "closed"
)

const (
	RoleUser  = "user"
	RoleAdmin = "admin"
)

// Document is the aggregate root for all mutable application state. It is
// loaded once at startup, held in memory and persisted wholesale after
// every mutation.
type Document struct {
	Users            []User          `json:"users"`
	Sessions         []Session       `json:"sessions"`
	Orders           []Order         `json:"orders"`
	Chats            []Chat          `json:"chats"`
	ActivityLog      []ActivityEntry `json:"activityLog"`
	Settings         Settings        `json:"settings"`
	Scripts          []Script        `json:"scripts"`
	ScriptVisibility map[string]bool `json:"scriptVisibility"`
	Views            map[string]int  `json:"views"`
	ViewTimeline     []TimelineEntry `json:"viewTimeline"`
	Metrics          SiteMetrics     `json:"metrics"`
	RobuxSettings    *RobuxSettings  `json:"robuxSettings,omitempty"`
}

// User is an account with a role. Email is stored lowercased.
type User struct {
	ID           string     `json:"id"`
	Email        string     `json:"email"`
	Username     string     `json:"username"`
	PasswordHash string     `json:"passwordHash"`
	Role         string     `json:"role"`
	CreatedAt    time.Time  `json:"createdAt"`
	LastLoginAt  *time.Time `json:"lastLoginAt"`
}

// Session is a bearer credential with an absolute expiry. Expired
// sessions are evicted lazily on first failed lookup.
type Session struct {
	Token     string    `json:"token"`
	UserID    string    `json:"userId"`
	CreatedAt time.Time `json:"createdAt"`
	ExpiresAt time.Time `json:"expiresAt"`
}

// Order is a purchase request with an evolving payment status.
type Order struct {
	ID          string    `json:"id"`
	UserID      string    `json:"userId"`
	Username    string    `json:"username"`
	Amount      float64   `json:"amount"`
	Currency    string    `json:"currency"`
	Product     string    `json:"product"`
	RobuxAmount *int      `json:"robuxAmount"`
	Status      string    `json:"status"`
	CreatedAt   time.Time `json:"createdAt"`
	Payment     *Payment  `json:"payment"`
}

// Payment records how an order was (or is being) paid. Status holds the
// raw provider vocabulary; Order.Status holds the normalized form.
type Payment struct {
	Provider      string    `json:"provider"`
	ProviderLabel string    `json:"providerLabel"`
	InvoiceID     *string   `json:"invoiceId"`
	InvoiceURL    *string   `json:"invoiceUrl"`
	Status        string    `json:"status"`
	PayCurrency   string    `json:"payCurrency"`
	PayAmount     *float64  `json:"payAmount"`
	ActuallyPaid  *float64  `json:"actuallyPaid"`
	CreatedAt     time.Time `json:"createdAt"`
	UpdatedAt     time.Time `json:"updatedAt"`
}

// Chat is a per-order support thread. Messages are append-only and
// chronological.
type Chat struct {
	ID              string    `json:"id"`
	OrderID         string    `json:"orderId"`
	UserID          string    `json:"userId"`
	Username        string    `json:"username"`
	AdminID         string    `json:"adminId,omitempty"`
	Status          string    `json:"status"`
	CreatedAt       time.Time `json:"createdAt"`
	LastActivityAt  time.Time `json:"lastActivityAt"`
	ResponseMinutes *int      `json:"responseMinutes"`
	Messages        []Message `json:"messages"`
}

// Message is immutable once appended. Author is "system", "admin" or a
// customer username.
type Message struct {
	ID        string    `json:"id"`
	Author    string    `json:"author"`
	Body      string    `json:"body"`
	CreatedAt time.Time `json:"createdAt"`
}

// ActivityEntry is one line of the append-only audit trail.
type ActivityEntry struct {
	ID        string    `json:"id"`
	Timestamp time.Time `json:"timestamp"`
	Message   string    `json:"message"`
}

// Settings holds the storefront configuration editable from the admin UI.
type Settings struct {
	SiteName             string `json:"siteName"`
	SiteTagline          string `json:"siteTagline"`
	LogoURL              string `json:"logoUrl"`
	StripeKey            string `json:"stripeKey"`
	PayhipKey            string `json:"payhipKey"`
	WorkinkKey           string `json:"workinkKey"`
	RevolutIBAN          string `json:"revolutIban"`
	ChatEnabled          bool   `json:"chatEnabled"`
	LoggingEnabled       bool   `json:"loggingEnabled"`
	NotificationsEnabled bool   `json:"notificationsEnabled"`
}

// Script is a catalog entry for a downloadable script.
type Script struct {
	Slug          string        `json:"slug"`
	Title         string        `json:"title"`
	Short         string        `json:"short"`
	Category      string        `json:"category"`
	Tags          []string      `json:"tags"`
	Features      []string      `json:"features"`
	Thumbnail     string        `json:"thumbnail"`
	WorkinkURL    string        `json:"workink_url"`
	Status        string        `json:"status"`
	Compatibility Compatibility `json:"compatibility"`
	Version       string        `json:"version"`
	ReleaseDate   string        `json:"release_date"`
	UpdatedAt     string        `json:"updated_at"`
	SEO           SEO           `json:"seo"`
	Description   string        `json:"description"`
	Views         int           `json:"views"`
}

// Compatibility flags for a script.
type Compatibility struct {
	PC               bool `json:"pc"`
	Mobile           bool `json:"mobile"`
	ExecutorRequired bool `json:"executor_required"`
}

// SEO metadata for a script page.
type SEO struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	Keywords    []string `json:"keywords"`
}

// RobuxSettings bounds the robux purchase flow.
type RobuxSettings struct {
	MinRobux         int     `json:"minRobux"`
	MaxRobux         int     `json:"maxRobux"`
	StepRobux        int     `json:"stepRobux"`
	QuickSelectPacks []int   `json:"quickSelectPacks"`
	BaseMarketPrice  float64 `json:"baseMarketPrice"`
	Markup           float64 `json:"markup"`
}

// SiteMetrics carries fallback values used when live data is missing.
type SiteMetrics struct {
	ChatResponseMinutes int `json:"chatResponseMinutes"`
}

// TimelineEntry is one day of aggregated view counts.
type TimelineEntry struct {
	Date  string `json:"date"`
	Count int    `json:"count"`
}

// FindOrder returns a pointer into the document's order slice, or nil.
func (d *Document) FindOrder(id string) *Order {
	for i := range d.Orders {
		if d.Orders[i].ID == id {
			return &d.Orders[i]
		}
	}
	return nil
}

// FindChat returns the chat with the given id, or nil.
func (d *Document) FindChat(id string) *Chat {
	for i := range d.Chats {
		if d.Chats[i].ID == id {
			return &d.Chats[i]
		}
	}
	return nil
}

// FindChatByOrder returns the chat bound to an order, or nil.
func (d *Document) FindChatByOrder(orderID string) *Chat {
	for i := range d.Chats {
		if d.Chats[i].OrderID == orderID {
			return &d.Chats[i]
		}
	}
	return nil
}

// FindUserByID returns the user with the given id, or nil.
func (d *Document) FindUserByID(id string) *User {
	for i := range d.Users {
		if d.Users[i].ID == id {
			return &d.Users[i]
		}
	}
	return nil
}

// FindUserByEmail matches case-insensitively.
func (d *Document) FindUserByEmail(email string) *User {
	email = strings.ToLower(email)
	for i := range d.Users {
		if d.Users[i].Email == email {
			return &d.Users[i]
		}
	}
	return nil
}

// HasAdmin reports whether at least one admin account exists.
func (d *Document) HasAdmin() bool {
	for i := range d.Users {
		if d.Users[i].Role == RoleAdmin {
			return true
		}
	}
	return false
}

// AppendActivity adds an audit-trail entry with a generated id and the
// current timestamp.
func (d *Document) AppendActivity(message string) {
	d.ActivityLog = append(d.ActivityLog, ActivityEntry{
		ID:        uuid.NewString(),
		Timestamp: time.Now().UTC(),
		Message:   message,
	})
}

// BumpViewTimeline increments today's entry in the view timeline,
// creating it if absent.
func (d *Document) BumpViewTimeline(date string) {
	for i := range d.ViewTimeline {
		if d.ViewTimeline[i].Date == date {
			d.ViewTimeline[i].Count++
			return
		}
	}
	d.ViewTimeline = append(d.ViewTimeline, TimelineEntry{Date: date, Count: 1})
}
