package app

import (
	"context"
	"errors"
	"time"

	"github.com/shopspring/decimal"

	"yieldscraper/internal/alerting"
	"yieldscraper/internal/curve"
)

// SimulateAlert evaluates the configured rule against a synthetic curve for today and
// sends the alert when it fires.
func (a *App) SimulateAlert(ctx context.Context, short, long decimal.Decimal) error {
	rule := a.newRule()
	if rule == nil {
		return errors.New("alerting is not enabled")
	}

	notifier := a.newNotifier()
	if notifier == nil {
		return errors.New("no alert channel configured")
	}

	note, fire, err := simulatedNotification(*rule, a.Config.Schedule(), short, long, time.Now().UTC())
	if err != nil {
		return err
	}
	if !fire {
		a.Logger.Info().
			Str("spread_bps", note.SpreadBps.String()).
			Str("threshold_bps", note.ThresholdBps.String()).
			Msg("spread not below threshold; nothing sent")
		return nil
	}

	note.AdditionalMsg = "(simulated)"
	return notifier.Notify(ctx, note)
}

func simulatedNotification(rule alerting.Rule, schedule curve.Schedule, short, long decimal.Decimal, now time.Time) (alerting.Notification, bool, error) {
	if err := rule.Validate(schedule); err != nil {
		return alerting.Notification{}, false, err
	}

	values := curve.NewRecord(schedule.Len())
	values[schedule.Index(rule.ShortMonths)] = short.StringFixed(2)
	values[schedule.Index(rule.LongMonths)] = long.StringFixed(2)

	day := now.Truncate(24 * time.Hour)
	return rule.Evaluate(schedule, curve.Curve{Date: curve.FormatDate(day), Time: day, Values: values})
}
