package model

import (
	"database/sql"
	"time"

	geom "github.com/peterstace/simplefeatures/geom"
	"gorm.io/datatypes"
	"gorm.io/gorm"
)

////////////////////////
// DATABASE STRUCTURES //
////////////////////////

// DatabaseModels is a list of all the structs exported here which represent tables in the database schema
var DatabaseModels = []any{
	&SentryInfo{},
	&Session{},
	&TelemetryFrame{},
	&FireEvent{},
}

////////////////////////
// SYSTEM MODELS
////////////////////////

// SentryInfo identifies the installation that owns the database
type SentryInfo struct {
	gorm.Model
	Installation string `json:"installation" gorm:"size:127"`
	Description  string `json:"description" gorm:"size:255"`
}

func (*SentryInfo) TableName() string {
	return "sentry_infos"
}

// Session is one continuous run of a turret controller
type Session struct {
	gorm.Model
	Name      string       `json:"name" gorm:"size:200"`
	Turret    string       `json:"turret" gorm:"size:64"`
	StartTime time.Time    `json:"startTime" gorm:"type:timestamptz;index:idx_session_start"`
	EndTime   sql.NullTime `json:"endTime" gorm:"type:timestamptz"`
	TickRate  float64      `json:"tickRate" gorm:"default:30"`
	Frames    uint64       `json:"frames"`
}

func (*Session) TableName() string {
	return "sessions"
}

////////////////////////
// TIME SERIES
////////////////////////

// TelemetryFrame is the per-tick snapshot of the controller. Time is the wall
// clock at recording, SimTime the simulated seconds since the controller started.
type TelemetryFrame struct {
	ID           uint      `json:"id" gorm:"primarykey;autoIncrement;"`
	Time         time.Time `json:"time" gorm:"type:timestamptz;"`
	SessionID    uint      `json:"sessionId" gorm:"index:idx_telemetry_session_id"`
	Session      Session   `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	CaptureFrame uint64    `json:"captureFrame" gorm:"index:idx_telemetry_capture_frame"`
	Tick         uint64    `json:"tick"`
	SimTime      float64   `json:"simTime"`

	Authority     string         `json:"authority" gorm:"size:16"`
	Yaw           float64        `json:"yaw"`
	Pitch         float64        `json:"pitch"`
	FinalYaw      float64        `json:"finalYaw"`
	FinalPitch    float64        `json:"finalPitch"`
	TargetID      string         `json:"targetId" gorm:"size:64"`
	TrackedIDs    datatypes.JSON `json:"trackedIds"`
	AimPoint      geom.Point     `json:"aimPoint"`
	InterceptTime float64        `json:"interceptTime"`
	Led           bool           `json:"led" gorm:"default:false"`

	Fired   bool   `json:"fired" gorm:"default:false"`
	Shots   int    `json:"shots"`
	Refusal string `json:"refusal" gorm:"size:16"`

	Ammunition        string  `json:"ammunition" gorm:"size:64"`
	CooldownRemaining float64 `json:"cooldownRemaining"`
	Heat              float64 `json:"heat"`
	Overheated        bool    `json:"overheated" gorm:"default:false"`
	Power             float64 `json:"power"`
	Depleted          bool    `json:"depleted" gorm:"default:false"`

	OverrideState string  `json:"overrideState" gorm:"size:16"`
	ScanPhase     float64 `json:"scanPhase"`
	Obstructed    bool    `json:"obstructed" gorm:"default:false"`

	Designations      int            `json:"designations"`
	CooperativeThreat float64        `json:"cooperativeThreat"`
	SensorBreakdown   datatypes.JSON `json:"sensorBreakdown"`

	CooldownScale float64         `json:"cooldownScale"`
	ThreatBias    float64         `json:"threatBias"`
	Reward        sql.NullFloat64 `json:"reward"`

	Diagnostics datatypes.JSON `json:"diagnostics"`
}

func (*TelemetryFrame) TableName() string {
	return "telemetry_frames"
}

////////////////////////
// EVENT DATA
////////////////////////

// FireEvent is a single shot emitted by the controller
type FireEvent struct {
	ID            uint       `json:"id" gorm:"primarykey;autoIncrement;"`
	Time          time.Time  `json:"time" gorm:"type:timestamptz;"`
	SessionID     uint       `json:"sessionId" gorm:"index:idx_fireevent_session_id"`
	Session       Session    `gorm:"constraint:OnUpdate:CASCADE,OnDelete:CASCADE;foreignkey:SessionID;"`
	CaptureFrame  uint64     `json:"captureFrame" gorm:"index:idx_fireevent_capture_frame"`
	Tick          uint64     `json:"tick"`
	SimTime       float64    `json:"simTime"`
	Source        string     `json:"source" gorm:"size:16"`
	TargetID      string     `json:"targetId" gorm:"size:64"`
	Ammunition    string     `json:"ammunition" gorm:"size:64"`
	Damage        float64    `json:"damage"`
	AimPoint      geom.Point `json:"aimPoint"`
	InterceptTime float64    `json:"interceptTime"`
	Yaw           float64    `json:"yaw"`
	Pitch         float64    `json:"pitch"`
}

func (*FireEvent) TableName() string {
	return "fire_events"
}
