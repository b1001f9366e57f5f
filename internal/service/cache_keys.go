package service

import "fmt"

// Cache namespaces. A mutation clears the whole namespace it touches.
const (
	nsMeters        = "meters"
	nsMetersSearch  = "meters_search"
	nsMeterReadings = "meterReadings"
	nsReports       = "electricityReports"
	nsReportsSearch = "electricity_reports_search"
)

// defaultMaxReading is reported for meters without any reading.
const defaultMaxReading = 200.0

func pageKey(page, limit int) string {
	return fmt.Sprintf("page:%d:limit:%d", page, limit)
}
