package domain

import "time"

// MeterType enumerates the installed meter hardware.
type MeterType string

const (
	MeterSinglePhase MeterType = "SINGLE_PHASE"
	MeterThreePhase  MeterType = "THREE_PHASE"
	MeterSmart       MeterType = "SMART"
)

// MeterStatus enumerates the operational state of a meter.
type MeterStatus string

const (
	MeterNormal  MeterStatus = "NORMAL"
	MeterFault   MeterStatus = "FAULT"
	MeterOffline MeterStatus = "OFFLINE"
)

func (t MeterType) Valid() bool {
	switch t {
	case MeterSinglePhase, MeterThreePhase, MeterSmart:
		return true
	}
	return false
}

func (s MeterStatus) Valid() bool {
	switch s {
	case MeterNormal, MeterFault, MeterOffline:
		return true
	}
	return false
}

// Meter is a physical electricity meter installed at a location.
type Meter struct {
	ID               int64
	Location         string
	Type             MeterType
	Status           MeterStatus
	InstallationDate *time.Time
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

// MeterFilter narrows a meter search. Empty fields are ignored.
type MeterFilter struct {
	Location string
	Type     MeterType
	Status   MeterStatus
}
