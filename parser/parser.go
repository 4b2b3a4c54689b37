package parser

import (
	"bytes"
	"errors"
	"fmt"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
	"github.com/aluiziolira/go-key-pricer/models"
	"github.com/go-playground/validator/v10"
)

var (
	nonNumeric    = regexp.MustCompile(`[^\d.]`)
	lineValidator = validator.New()
)

// ValidateReportLine ensures a line has what the report columns need.
func ValidateReportLine(l *models.ReportLine) error {
	if l == nil {
		return fmt.Errorf("report line is nil")
	}
	trimmed := models.ReportLine{
		Title: strings.TrimSpace(l.Title),
		Price: strings.TrimSpace(l.Price),
		Ratio: strings.TrimSpace(l.Ratio),
		URL:   strings.TrimSpace(l.URL),
	}
	if err := lineValidator.Struct(trimmed); err != nil {
		var verrs validator.ValidationErrors
		if errors.As(err, &verrs) && len(verrs) > 0 {
			return fmt.Errorf("report line %q: invalid %s (%s)", l.Title, strings.ToLower(verrs[0].Field()), verrs[0].Tag())
		}
		return fmt.Errorf("validate report line: %w", err)
	}
	return nil
}

// ExtractText returns the trimmed text of the first element matching selector.
func ExtractText(body []byte, selector string) (string, bool) {
	doc, err := goquery.NewDocumentFromReader(bytes.NewReader(body))
	if err != nil {
		return "", false
	}
	sel := doc.Find(selector).First()
	if sel.Length() == 0 {
		return "", false
	}
	text := strings.TrimSpace(sel.Text())
	return text, text != ""
}

// ExtractPrice pulls the displayed price out of a listing page. A missing
// marker can mean the game has no price or the page layout changed; the two
// are not told apart.
func ExtractPrice(body []byte, selector string) (string, bool) {
	return ExtractText(body, selector)
}

// NormalizePrice drops everything but digits and the decimal point.
func NormalizePrice(price string) string {
	return nonNumeric.ReplaceAllString(price, "")
}

// NormalizeReference removes the approximation and currency marks the stats
// page prints around the key price.
func NormalizeReference(text string) string {
	text = strings.ReplaceAll(text, "~", "")
	text = strings.ReplaceAll(text, "$", "")
	return strings.TrimSpace(text)
}
