package models

import "time"

// Machine is an entry of the machine registry.
type Machine struct {
	ID           string    `json:"id"`
	Name         string    `json:"name"`
	SerialNumber string    `json:"serialNumber"`
	Department   string    `json:"department"`
	DepartmentID string    `json:"departmentId"`
	LastUpdated  time.Time `json:"lastUpdated"`
}

// MachineStats summarizes one machine over a half-open time window.
type MachineStats struct {
	MachineID     string    `json:"machineId"`
	Start         time.Time `json:"start"`
	End           time.Time `json:"end"`
	EventsCount   int64     `json:"eventsCount"`
	DefectsCount  int64     `json:"defectsCount"`
	AvgDefectRate float64   `json:"avgDefectRate"`
	Status        string    `json:"status"`
}

// TopDefectLine is one row of the top-defect-lines report.
type TopDefectLine struct {
	LineID         string  `json:"lineId"`
	TotalDefects   int64   `json:"totalDefects"`
	EventCount     int64   `json:"eventCount"`
	DefectsPercent float64 `json:"defectsPercent"`
}
