package models

type MachineEarning struct {
	MachineID string  `json:"machineId"`
	Name      string  `json:"name"`
	Earnings  float64 `json:"earnings"`
}

// OwnerAnalytics maps are keyed by "month-year", e.g. "1-2024".
type OwnerAnalytics struct {
	MonthlyEarnings map[string]float64 `json:"monthlyEarnings"`
	MonthlyRentals  map[string]int     `json:"monthlyRentals"`
	TopMachines     []MachineEarning   `json:"topMachines"`
}

type TypeCount struct {
	Type  string `json:"type"`
	Count int    `json:"count"`
}

type RenterAnalytics struct {
	MonthlyRentals  map[string]int     `json:"monthlyRentals"`
	MonthlySpending map[string]float64 `json:"monthlySpending"`
	MostRentedTypes []TypeCount        `json:"mostRentedTypes"`
}

type OwnerEarnings struct {
	TotalEarnings    float64      `json:"totalEarnings"`
	CompletedRentals []RentalView `json:"completedRentals"`
}
