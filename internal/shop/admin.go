package shop

import (
	"math"
	"sort"
	"time"

	"profitcruiser/internal/state"
)

// Overview is the admin dashboard aggregate.
type Overview struct {
	Totals    OverviewTotals        `json:"totals"`
	Charts    OverviewCharts        `json:"charts"`
	Orders    []state.Order         `json:"orders"`
	Chats     []ChatSummary         `json:"chats"`
	Activity  []state.ActivityEntry `json:"activity"`
	Settings  state.Settings        `json:"settings"`
	Hidden    []string              `json:"hiddenScripts"`
}

// OverviewTotals are the headline numbers.
type OverviewTotals struct {
	Views        int        `json:"views"`
	ActiveBuyers int        `json:"activeBuyers"`
	OpenChats    int        `json:"openChats"`
	LastActivity *time.Time `json:"lastActivity"`
}

// OverviewCharts are the dashboard chart series.
type OverviewCharts struct {
	ViewsPerDay                []state.TimelineEntry `json:"viewsPerDay"`
	TopScripts                 []NamedCount          `json:"topScripts"`
	TopProducts                []NamedCount          `json:"topProducts"`
	SalesLast7Days             []DatedAmount         `json:"salesLast7Days"`
	SalesLast30Days            []DatedAmount         `json:"salesLast30Days"`
	AverageChatResponseMinutes int                   `json:"averageChatResponseMinutes"`
}

// NamedCount pairs a label with a tally.
type NamedCount struct {
	Name  string `json:"name"`
	Count int    `json:"count"`
}

// DatedAmount is one day of sales revenue.
type DatedAmount struct {
	Date   string  `json:"date"`
	Amount float64 `json:"amount"`
}

// ChatSummary is the dashboard's compact chat row.
type ChatSummary struct {
	ID             string    `json:"id"`
	OrderID        string    `json:"orderId"`
	Username       string    `json:"username"`
	Status         string    `json:"status"`
	LastActivityAt time.Time `json:"lastActivityAt"`
	MessageCount   int       `json:"messageCount"`
}

// SettingsPatch carries partial updates for the site settings.
type SettingsPatch struct {
	SiteName             *string `json:"siteName"`
	SiteTagline          *string `json:"siteTagline"`
	LogoURL              *string `json:"logoUrl"`
	StripeKey            *string `json:"stripeKey"`
	PayhipKey            *string `json:"payhipKey"`
	WorkinkKey           *string `json:"workinkKey"`
	RevolutIBAN          *string `json:"revolutIban"`
	ChatEnabled          *bool   `json:"chatEnabled"`
	LoggingEnabled       *bool   `json:"loggingEnabled"`
	NotificationsEnabled *bool   `json:"notificationsEnabled"`
}

// RobuxSettingsPatch carries partial updates for the robux purchase
// bounds.
type RobuxSettingsPatch struct {
	MinRobux         *int     `json:"minRobux"`
	MaxRobux         *int     `json:"maxRobux"`
	StepRobux        *int     `json:"stepRobux"`
	QuickSelectPacks *[]int   `json:"quickSelectPacks"`
	BaseMarketPrice  *float64 `json:"baseMarketPrice"`
	Markup           *float64 `json:"markup"`
}

// Overview assembles the dashboard from the live document.
func (s *Service) Overview() Overview {
	var out Overview
	s.store.View(func(doc *state.Document) {
		totalViews := 0
		for _, count := range doc.Views {
			totalViews += count
		}

		buyers := map[string]struct{}{}
		for i := range doc.Orders {
			if doc.Orders[i].Status == state.OrderStatusPaid {
				buyers[doc.Orders[i].UserID] = struct{}{}
			}
		}

		openChats := 0
		for i := range doc.Chats {
			if doc.Chats[i].Status == state.ChatStatusOpen {
				openChats++
			}
		}

		var lastActivity *time.Time
		if n := len(doc.ActivityLog); n > 0 {
			ts := doc.ActivityLog[n-1].Timestamp
			lastActivity = &ts
		}

		out.Totals = OverviewTotals{
			Views:        totalViews,
			ActiveBuyers: len(buyers),
			OpenChats:    openChats,
			LastActivity: lastActivity,
		}

		out.Charts = OverviewCharts{
			ViewsPerDay:                append([]state.TimelineEntry(nil), doc.ViewTimeline...),
			TopScripts:                 topCounts(doc.Views, 5),
			TopProducts:                topProducts(doc.Orders, 5),
			SalesLast7Days:             salesByDay(doc.Orders, 7),
			SalesLast30Days:            salesByDay(doc.Orders, 30),
			AverageChatResponseMinutes: averageResponseMinutes(doc),
		}

		out.Orders = lastOrders(doc.Orders, 20)
		out.Chats = chatSummaries(doc.Chats)
		out.Activity = lastActivityEntries(doc.ActivityLog, 50)
		out.Settings = doc.Settings
		for slug, hidden := range doc.ScriptVisibility {
			if hidden {
				out.Hidden = append(out.Hidden, slug)
			}
		}
		sort.Strings(out.Hidden)
	})
	return out
}

// UpdateSettings applies a partial update to the site settings.
func (s *Service) UpdateSettings(patch SettingsPatch) (state.Settings, error) {
	var settings state.Settings
	err := s.store.Update(func(doc *state.Document) error {
		if patch.SiteName != nil {
			doc.Settings.SiteName = *patch.SiteName
		}
		if patch.SiteTagline != nil {
			doc.Settings.SiteTagline = *patch.SiteTagline
		}
		if patch.LogoURL != nil {
			doc.Settings.LogoURL = *patch.LogoURL
		}
		if patch.StripeKey != nil {
			doc.Settings.StripeKey = *patch.StripeKey
		}
		if patch.PayhipKey != nil {
			doc.Settings.PayhipKey = *patch.PayhipKey
		}
		if patch.WorkinkKey != nil {
			doc.Settings.WorkinkKey = *patch.WorkinkKey
		}
		if patch.RevolutIBAN != nil {
			doc.Settings.RevolutIBAN = *patch.RevolutIBAN
		}
		if patch.ChatEnabled != nil {
			doc.Settings.ChatEnabled = *patch.ChatEnabled
		}
		if patch.LoggingEnabled != nil {
			doc.Settings.LoggingEnabled = *patch.LoggingEnabled
		}
		if patch.NotificationsEnabled != nil {
			doc.Settings.NotificationsEnabled = *patch.NotificationsEnabled
		}
		doc.AppendActivity("Admin updated settings")
		settings = doc.Settings
		return nil
	})
	return settings, err
}

// RobuxSettings returns the robux purchase bounds, falling back to the
// built-in defaults when none were saved yet.
func (s *Service) RobuxSettings() state.RobuxSettings {
	var settings state.RobuxSettings
	s.store.View(func(doc *state.Document) {
		if doc.RobuxSettings != nil {
			settings = *doc.RobuxSettings
			return
		}
		settings = state.DefaultRobuxSettings()
	})
	return settings
}

// UpdateRobuxSettings applies a partial update to the robux purchase
// bounds.
func (s *Service) UpdateRobuxSettings(patch RobuxSettingsPatch) (state.RobuxSettings, error) {
	var settings state.RobuxSettings
	err := s.store.Update(func(doc *state.Document) error {
		if doc.RobuxSettings == nil {
			defaults := state.DefaultRobuxSettings()
			doc.RobuxSettings = &defaults
		}
		rs := doc.RobuxSettings
		if patch.MinRobux != nil {
			rs.MinRobux = *patch.MinRobux
		}
		if patch.MaxRobux != nil {
			rs.MaxRobux = *patch.MaxRobux
		}
		if patch.StepRobux != nil {
			rs.StepRobux = *patch.StepRobux
		}
		if patch.QuickSelectPacks != nil {
			rs.QuickSelectPacks = *patch.QuickSelectPacks
		}
		if patch.BaseMarketPrice != nil {
			rs.BaseMarketPrice = *patch.BaseMarketPrice
		}
		if patch.Markup != nil {
			rs.Markup = *patch.Markup
		}
		doc.AppendActivity("Admin updated Robux settings")
		settings = *rs
		return nil
	})
	return settings, err
}

func topCounts(views map[string]int, limit int) []NamedCount {
	counts := make([]NamedCount, 0, len(views))
	for name, count := range views {
		counts = append(counts, NamedCount{Name: name, Count: count})
	}
	sort.Slice(counts, func(i, j int) bool {
		if counts[i].Count != counts[j].Count {
			return counts[i].Count > counts[j].Count
		}
		return counts[i].Name < counts[j].Name
	})
	if len(counts) > limit {
		counts = counts[:limit]
	}
	return counts
}

func topProducts(orders []state.Order, limit int) []NamedCount {
	tally := map[string]int{}
	for i := range orders {
		if orders[i].Status == state.OrderStatusPaid {
			tally[orders[i].Product]++
		}
	}
	return topCounts(tally, limit)
}

func salesByDay(orders []state.Order, days int) []DatedAmount {
	now := time.Now().UTC()
	cutoff := now.AddDate(0, 0, -days)
	perDay := map[string]float64{}
	for i := range orders {
		if orders[i].Status != state.OrderStatusPaid {
			continue
		}
		if orders[i].CreatedAt.Before(cutoff) {
			continue
		}
		date := orders[i].CreatedAt.Format("2006-01-02")
		perDay[date] += orders[i].Amount
	}
	out := make([]DatedAmount, 0, days)
	for offset := days - 1; offset >= 0; offset-- {
		date := now.AddDate(0, 0, -offset).Format("2006-01-02")
		out = append(out, DatedAmount{Date: date, Amount: perDay[date]})
	}
	return out
}

func averageResponseMinutes(doc *state.Document) int {
	sum, count := 0, 0
	for i := range doc.Chats {
		if doc.Chats[i].ResponseMinutes != nil {
			sum += *doc.Chats[i].ResponseMinutes
			count++
		}
	}
	if count == 0 {
		return doc.Metrics.ChatResponseMinutes
	}
	return int(math.Round(float64(sum) / float64(count)))
}

func lastOrders(orders []state.Order, limit int) []state.Order {
	start := len(orders) - limit
	if start < 0 {
		start = 0
	}
	out := make([]state.Order, 0, len(orders)-start)
	for i := len(orders) - 1; i >= start; i-- {
		out = append(out, orders[i])
	}
	return out
}

func lastActivityEntries(entries []state.ActivityEntry, limit int) []state.ActivityEntry {
	start := len(entries) - limit
	if start < 0 {
		start = 0
	}
	out := make([]state.ActivityEntry, 0, len(entries)-start)
	for i := len(entries) - 1; i >= start; i-- {
		out = append(out, entries[i])
	}
	return out
}

func chatSummaries(chats []state.Chat) []ChatSummary {
	out := make([]ChatSummary, 0, len(chats))
	for i := range chats {
		out = append(out, ChatSummary{
			ID:             chats[i].ID,
			OrderID:        chats[i].OrderID,
			Username:       chats[i].Username,
			Status:         chats[i].Status,
			LastActivityAt: chats[i].LastActivityAt,
			MessageCount:   len(chats[i].Messages),
		})
	}
	return out
}
