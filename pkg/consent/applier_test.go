package consent

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"github.com/umputun/consentd/pkg/domain"
)

// fakeTag records every toggle call
type fakeTag struct {
	calls   []bool
	enabled bool
}

func (f *fakeTag) SetEnabled(enabled bool) {
	f.calls = append(f.calls, enabled)
	f.enabled = enabled
}

func TestApplier_Apply(t *testing.T) {
	analytics, ads := &fakeTag{}, &fakeTag{}
	a := NewApplier(
		Integration{Name: "analytics_storage", Category: domain.CategoryAnalytics, Lookup: func() Toggler { return analytics }},
		Integration{Name: "ad_storage", Category: domain.CategoryMarketing, Lookup: func() Toggler { return ads }},
	)

	rec := domain.NewRecord(domain.StatusCustomized, domain.Preferences{Analytics: true}, time.Now())
	a.Apply(rec)
	assert.True(t, analytics.enabled)
	assert.False(t, ads.enabled)
	assert.Equal(t, []bool{true}, analytics.calls)
	assert.Equal(t, []bool{false}, ads.calls)

	a.Apply(rec)
	assert.Len(t, analytics.calls, 1, "second apply with same record is a no-op")
	assert.Len(t, ads.calls, 1)

	a.Apply(domain.NewRecord(domain.StatusAccepted, domain.Preferences{Analytics: true, Marketing: true}, time.Now()))
	assert.Equal(t, []bool{true}, analytics.calls)
	assert.Equal(t, []bool{false, true}, ads.calls)
}

func TestApplier_IntegrationNotLoaded(t *testing.T) {
	var chat *fakeTag
	a := NewApplier(
		Integration{Name: "chat", Category: domain.CategoryMarketing, Lookup: func() Toggler {
			if chat == nil {
				return nil
			}
			return chat
		}},
		Integration{Name: "no-lookup", Category: domain.CategoryAnalytics},
	)

	rec := domain.NewRecord(domain.StatusAccepted, domain.Preferences{Analytics: true, Marketing: true}, time.Now())
	assert.NotPanics(t, func() { a.Apply(rec) })

	// script loaded after the decision, next apply reaches it
	chat = &fakeTag{}
	a.Apply(rec)
	assert.Equal(t, []bool{true}, chat.calls)
}

func TestApplier_TogglerFunc(t *testing.T) {
	var got []bool
	a := NewApplier(Integration{Name: "f", Category: domain.CategoryEssential,
		Lookup: func() Toggler { return TogglerFunc(func(e bool) { got = append(got, e) }) }})
	a.Apply(domain.NewRecord(domain.StatusDeclined, domain.Preferences{}, time.Now()))
	assert.Equal(t, []bool{true}, got, "essential integrations always enabled")
}
