package catalog

import (
	"github.com/shopspring/decimal"
	"github.com/warp/proposal-engine/plan"
)

// Default returns the built-in demo catalog used when no catalog file is
// configured and the database is empty.
func Default() []Property {
	return []Property{
		{
			ID:   "jardins",
			Name: "Residencial Jardins do Lago",
			Units: []Unit{
				unit("101", 68.5, table(500000, 100000, 5000, 40, 10000, 4, 20000)),
				unit("102", 72, table(540000, 108000, 5400, 40, 12000, 4, 25000)),
				unit("201", 95, table(720000, 144000, 7200, 36, 18000, 3, 0)),
			},
		},
		{
			ID:   "mirante",
			Name: "Edifício Mirante da Serra",
			Units: []Unit{
				unit("A-11", 54, table(390000, 58500, 3250, 48, 0, 0, 39000)),
				unit("A-12", 54, table(395000, 59250, 0, 0, 15000, 5, 40000)),
				unit("COB-01", 180, table(1450000, 290000, 12000, 60, 45000, 5, 100000)),
			},
		},
	}
}

func unit(id string, area float64, p plan.PaymentPlan) Unit {
	return Unit{ID: id, Area: decimal.NewFromFloat(area), TablePlan: p}
}

func table(total, down, instValue float64, instCount int, annualValue float64, annualCount int, balloon float64) plan.PaymentPlan {
	return plan.PaymentPlan{
		Total:        decimal.NewFromFloat(total),
		DownPayment:  decimal.NewFromFloat(down),
		Installments: plan.NewPaymentDetail(instValue, instCount),
		Annual:       plan.NewPaymentDetail(annualValue, annualCount),
		Balloon:      decimal.NewFromFloat(balloon),
	}.WithFinanced()
}
