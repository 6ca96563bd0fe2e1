// Package fleet holds the crew, vehicle and dashboard projections read from
// the upstream API, and the per-session cache in front of them.
package fleet

import (
	"bytes"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/jrsteele09/go-fleet-collect/internal/utils"
)

type Crew struct {
	ID        FlexInt  `json:"id"`
	Name      string   `json:"name"`
	Role      string   `json:"role"` // driver or conductor
	Phone     string   `json:"phone,omitempty"`
	CompanyID FlexInt  `json:"company_id"`
	VehicleID *FlexInt `json:"vehicle_id,omitempty"`
}

// AssignedVehicle returns the vehicle id, or 0 when unassigned.
func (c Crew) AssignedVehicle() int64 {
	return int64(utils.Value(c.VehicleID))
}

type Vehicle struct {
	ID          FlexInt  `json:"id"`
	PlateNumber string   `json:"plate_number"`
	Model       string   `json:"model,omitempty"`
	Capacity    FlexInt  `json:"capacity,omitempty"`
	Status      string   `json:"status,omitempty"`
	CompanyID   FlexInt  `json:"company_id"`
	DriverID    *FlexInt `json:"driver_id,omitempty"`
	ConductorID *FlexInt `json:"conductor_id,omitempty"`
}

// Crewed reports whether both crew seats are filled.
func (v Vehicle) Crewed() bool {
	return utils.Value(v.DriverID) > 0 && utils.Value(v.ConductorID) > 0
}

type DashboardStats struct {
	TotalVehicles    FlexInt   `json:"total_vehicles"`
	ActiveVehicles   FlexInt   `json:"active_vehicles"`
	TotalCrew        FlexInt   `json:"total_crew"`
	CollectionsToday FlexInt   `json:"collections_today"`
	CashToday        FlexFloat `json:"cash_today"`
	MobileMoneyToday FlexFloat `json:"mobile_money_today"`
}

// FlexInt decodes numbers, numeric strings and null (as 0).
type FlexInt int64

func (f *FlexInt) UnmarshalJSON(data []byte) error {
	s, ok := flexString(data)
	if !ok {
		*f = 0
		return nil
	}
	n, err := strconv.ParseInt(s, 10, 64)
	if err != nil {
		fl, ferr := strconv.ParseFloat(s, 64)
		if ferr != nil {
			return fmt.Errorf("invalid integer %s", string(data))
		}
		n = int64(fl)
	}
	*f = FlexInt(n)
	return nil
}

// FlexFloat decodes numbers, numeric strings and null (as 0).
type FlexFloat float64

func (f *FlexFloat) UnmarshalJSON(data []byte) error {
	s, ok := flexString(data)
	if !ok {
		*f = 0
		return nil
	}
	n, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return fmt.Errorf("invalid number %s", string(data))
	}
	*f = FlexFloat(n)
	return nil
}

func flexString(data []byte) (string, bool) {
	data = bytes.TrimSpace(data)
	if bytes.Equal(data, []byte("null")) {
		return "", false
	}
	var s string
	if err := json.Unmarshal(data, &s); err == nil {
		s = strings.TrimSpace(s)
		return s, s != ""
	}
	return string(data), true
}
