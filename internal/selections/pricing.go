package selections

import (
	"math"
	"strings"
)

const (
	bulkExtrasThreshold = 3
	bulkExtrasDiscount  = 0.95
	multiUnitThreshold  = 2
	multiUnitDiscount   = 0.90
	agentCommissionRate = 0.10
	onlineAgent         = "Online"
)

// CalculateSmartTotal sums room price plus customizations, then extras with
// a 10% line discount above two units and a 5% discount on the extras
// subtotal once three or more are selected. Rounded to cents.
func CalculateSmartTotal(rooms []SelectedRoom, extras []SelectedExtra) float64 {
	total := 0.0
	for _, r := range rooms {
		total += r.Price + r.CustomizationTotal
	}

	extrasTotal := 0.0
	for _, e := range extras {
		extrasTotal += extraLineTotal(e)
	}
	if len(extras) >= bulkExtrasThreshold {
		extrasTotal *= bulkExtrasDiscount
	}

	return roundCents(total + extrasTotal)
}

func extraLineTotal(e SelectedExtra) float64 {
	units := e.Units
	if units < 1 {
		units = 1
	}
	line := e.Price * float64(units)
	if units > multiUnitThreshold {
		line *= multiUnitDiscount
	}
	return line
}

// Commission is owed only on sales by a named agent
func Commission(price float64, agent string) float64 {
	agent = strings.TrimSpace(agent)
	if agent == "" || strings.EqualFold(agent, onlineAgent) {
		return 0
	}
	return roundCents(price * agentCommissionRate)
}

func customizationTotal(c map[string]Customization) float64 {
	sum := 0.0
	for _, v := range c {
		sum += v.Price
	}
	return roundCents(sum)
}

func roundCents(v float64) float64 {
	return math.Round(v*100) / 100
}
