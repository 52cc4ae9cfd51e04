package driver

import (
	"context"
	"fmt"
	"strings"

	"github.com/mrz1836/trellis/internal/wait"
)

// Locator is a lazy handle to the elements matching a selector. It holds no
// elements: every call re-queries the page, so assertions always see
// current state rather than a list captured when the locator was made.
type Locator struct {
	session  *Session
	selector string
}

// Locate returns a lazy handle for selector.
func (s *Session) Locate(selector string) *Locator {
	return &Locator{session: s, selector: selector}
}

// Selector returns the selector the locator re-evaluates.
func (l *Locator) Selector() string {
	return l.selector
}

func (l *Locator) query(ctx context.Context) ([]Element, error) {
	if err := l.session.requireUI("locate"); err != nil {
		return nil, err
	}
	return l.session.page.Query(ctx, l.selector)
}

// Count returns the number of matching elements right now.
func (l *Locator) Count(ctx context.Context) (int, error) {
	els, err := l.query(ctx)
	if err != nil {
		return 0, err
	}
	return len(els), nil
}

// Texts returns the text of every visible matching element right now.
func (l *Locator) Texts(ctx context.Context) ([]string, error) {
	els, err := l.query(ctx)
	if err != nil {
		return nil, err
	}
	texts := make([]string, 0, len(els))
	for _, el := range els {
		if el.Visible {
			texts = append(texts, strings.TrimSpace(el.Text))
		}
	}
	return texts, nil
}

// Visible holds when at least one matching element is visible.
func (l *Locator) Visible() wait.Condition {
	return wait.NewCondition(fmt.Sprintf("%s visible", l.selector), func(ctx context.Context) (bool, error) {
		els, err := l.query(ctx)
		if err != nil {
			return false, err
		}
		for _, el := range els {
			if el.Visible {
				return true, nil
			}
		}
		return false, nil
	})
}

// HasText holds when a visible matching element contains text.
func (l *Locator) HasText(text string) wait.Condition {
	return wait.NewCondition(fmt.Sprintf("text %q in %s", text, l.selector), func(ctx context.Context) (bool, error) {
		texts, err := l.Texts(ctx)
		if err != nil {
			return false, err
		}
		for _, t := range texts {
			if strings.Contains(t, text) {
				return true, nil
			}
		}
		return false, nil
	})
}

// CountIs holds when exactly n elements match.
func (l *Locator) CountIs(n int) wait.Condition {
	return wait.NewCondition(fmt.Sprintf("%d elements match %s", n, l.selector), func(ctx context.Context) (bool, error) {
		count, err := l.Count(ctx)
		if err != nil {
			return false, err
		}
		return count == n, nil
	})
}

// CountStable holds once the match count is unchanged for samples polls.
func (l *Locator) CountStable(samples int) wait.Condition {
	return wait.Stable("element count of "+l.selector, l.Count, samples)
}

// WaitCount waits until exactly n elements match.
func (l *Locator) WaitCount(ctx context.Context, n int) error {
	return l.session.Await(ctx, l.CountIs(n))
}

// WaitText waits until a visible matching element contains text.
func (l *Locator) WaitText(ctx context.Context, text string) error {
	return l.session.Await(ctx, l.HasText(text))
}
