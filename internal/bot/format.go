package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"props_bot/internal/model"
)

var printer = message.NewPrinter(language.MustParse("es-AR"))

// FormatCriteria formats the active filters and query of a chat.
func FormatCriteria(c model.Criteria, query string) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Active filters: %d", c.ActiveCount())

	if c.Operation != nil {
		fmt.Fprintf(&b, "\nOperation: %s", *c.Operation)
	}
	if len(c.PropertyTypes) > 0 {
		fmt.Fprintf(&b, "\nTypes: %s", joinValues(c.PropertyTypes))
	}
	if c.PriceMin != nil || c.PriceMax != nil {
		fmt.Fprintf(&b, "\nPrice: %s", formatRange(c.PriceMin, c.PriceMax, string(c.Currency)))
	}
	if c.AreaMin != nil || c.AreaMax != nil {
		fmt.Fprintf(&b, "\nArea: %s", formatRange(c.AreaMin, c.AreaMax, "m²"))
	}
	if c.Bedrooms != nil {
		fmt.Fprintf(&b, "\nBedrooms: %d+", *c.Bedrooms)
	}
	if c.Bathrooms != nil {
		fmt.Fprintf(&b, "\nBathrooms: %d+", *c.Bathrooms)
	}
	if c.Parking != nil {
		fmt.Fprintf(&b, "\nParking: %d+", *c.Parking)
	}
	if c.Age != nil {
		fmt.Fprintf(&b, "\nAge: %s", *c.Age)
	}
	if len(c.Neighborhoods) > 0 {
		fmt.Fprintf(&b, "\nBarrios: %s", strings.Join(c.Neighborhoods, ", "))
	}
	if len(c.Amenities) > 0 {
		fmt.Fprintf(&b, "\nAmenities: %s", strings.Join(c.Amenities, ", "))
	}
	if c.OnlyOpportunities {
		b.WriteString("\nOnly opportunities")
	}

	fmt.Fprintf(&b, "\n\nCurrency: %s\nSort: %s %s", c.Currency, c.SortBy, c.SortOrder)
	if query != "" {
		fmt.Fprintf(&b, "\nQuery: %q", query)
	}
	return b.String()
}

func formatRange(lo, hi *float64, unit string) string {
	switch {
	case lo != nil && hi != nil:
		return printer.Sprintf("%.0f – %.0f %s", *lo, *hi, unit)
	case lo != nil:
		return printer.Sprintf("from %.0f %s", *lo, unit)
	default:
		return printer.Sprintf("up to %.0f %s", *hi, unit)
	}
}

// FormatSavedList formats the saved searches of a chat.
func FormatSavedList(saved []model.SavedSearch) string {
	if len(saved) == 0 {
		return "You have no saved searches yet. Use /save <name> to save the current filters."
	}
	var b strings.Builder
	b.WriteString("Saved searches:\n")
	for _, ss := range saved {
		fmt.Fprintf(&b, "\n%s\n   %d filter(s)", ss.Name, ss.Filters.ActiveCount())
		if ss.Query != nil {
			fmt.Fprintf(&b, ", query %q", *ss.Query)
		}
		fmt.Fprintf(&b, "\n   id: %s\n", ss.ID)
	}
	return b.String()
}

// FormatRecentList formats the recent searches of a chat, newest first.
func FormatRecentList(recent []model.RecentSearch) string {
	if len(recent) == 0 {
		return "No recent searches."
	}
	var b strings.Builder
	b.WriteString("Recent searches:\n")
	for i, r := range recent {
		fmt.Fprintf(&b, "\n%d. %s  (%s)", i+1, r.Query, r.Timestamp.Format("2006-01-02 15:04 UTC"))
	}
	return b.String()
}

// FormatProperty formats a single listing.
func FormatProperty(p model.Property) string {
	var b strings.Builder
	b.WriteString(p.Title)
	if p.IsOpportunity {
		b.WriteString("  ★ opportunity")
	}
	b.WriteString("\n")
	b.WriteString(printer.Sprintf("%s %.0f", p.Currency, p.Price))
	if p.AreaM2 > 0 {
		b.WriteString(printer.Sprintf(" · %.0f m² · %.0f %s/m²", p.AreaM2, p.PricePerM2(), p.Currency))
	}
	fmt.Fprintf(&b, " · %d bed · %d bath", p.Bedrooms, p.Bathrooms)
	if p.Neighborhood != "" {
		fmt.Fprintf(&b, "\n%s", p.Neighborhood)
	}
	if p.Link != "" {
		fmt.Fprintf(&b, "\n%s", p.Link)
	}
	return b.String()
}

// FormatNotification formats a new listing matching a saved search.
func FormatNotification(searchName string, p model.Property) string {
	return fmt.Sprintf("[%s]\n\n%s", searchName, FormatProperty(p))
}

// FormatResults formats one page of search results.
func FormatResults(resp model.PropertiesResponse) string {
	if resp.Total == 0 {
		return "No listings match your filters. Try /unset or /reset."
	}
	if len(resp.Items) == 0 {
		return fmt.Sprintf("Page %d is empty, there are %d matching listings.", resp.Page, resp.Total)
	}
	var b strings.Builder
	first := (resp.Page-1)*resp.Limit + 1
	fmt.Fprintf(&b, "Listings %d-%d of %d:\n", first, first+len(resp.Items)-1, resp.Total)
	for _, p := range resp.Items {
		b.WriteString("\n")
		b.WriteString(FormatProperty(p))
		b.WriteString("\n")
	}
	return b.String()
}

func savedKeyboard(saved []model.SavedSearch) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(saved))
	for _, ss := range saved {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Load "+ss.Name, cbLoad+":"+ss.ID),
			tgbotapi.NewInlineKeyboardButtonData("Delete", cbDeleteSaved+":"+ss.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func recentKeyboard(recent []model.RecentSearch) tgbotapi.InlineKeyboardMarkup {
	rows := make([][]tgbotapi.InlineKeyboardButton, 0, len(recent))
	for _, r := range recent {
		rows = append(rows, tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData(r.Query, cbRecent+":"+r.ID),
			tgbotapi.NewInlineKeyboardButtonData("✕", cbRemoveRecent+":"+r.ID),
		))
	}
	return tgbotapi.NewInlineKeyboardMarkup(rows...)
}

func pageKeyboard(next int) tgbotapi.InlineKeyboardMarkup {
	return tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonData("Next page", fmt.Sprintf("%s:%d", cbPage, next)),
		),
	)
}
