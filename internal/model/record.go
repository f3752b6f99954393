package model

import (
	"encoding/json"
	"fmt"
	"time"
)

// CommandType is the record family selected by the marker after the timestamp.
type CommandType string

const (
	CommandStatus CommandType = "status"
	CommandClient CommandType = "client"
	CommandChild  CommandType = "child"
	CommandServer CommandType = "server"
)

const (
	dateLayout = "2006-01-02"
	timeLayout = "15:04:05"
)

// Record is one parsed workflow log line.
//
// Command, NodePath and AdditionalInformation are empty when the line does not
// carry them. Raw always holds the source line verbatim.
type Record struct {
	Owner                 string
	Repo                  string
	Source                string // originating file path
	LogType               string
	Timestamp             time.Time
	CommandType           CommandType
	Command               string
	NodePath              string
	AdditionalInformation string
	Raw                   string
}

// Date returns the calendar day of the record (UTC midnight).
func (r Record) Date() time.Time {
	return DayOf(r.Timestamp)
}

// Clock returns the time-of-day part of the record as HH:MM:SS.
func (r Record) Clock() string {
	return r.Timestamp.Format(timeLayout)
}

// DayOf truncates t to the start of its calendar day in UTC.
func DayOf(t time.Time) time.Time {
	t = t.UTC()
	return time.Date(t.Year(), t.Month(), t.Day(), 0, 0, 0, 0, time.UTC)
}

// recordJSON is the storage/queue schema of a record.
type recordJSON struct {
	Owner                 string      `json:"owner,omitempty"`
	Repo                  string      `json:"repo,omitempty"`
	Source                string      `json:"source,omitempty"`
	LogType               string      `json:"log_type"`
	Date                  string      `json:"date"`
	Time                  string      `json:"time"`
	CommandType           CommandType `json:"command_type"`
	Command               string      `json:"command,omitempty"`
	NodePath              string      `json:"node_path,omitempty"`
	AdditionalInformation string      `json:"additional_information,omitempty"`
	RawLine               string      `json:"raw_line"`
}

func (r Record) MarshalJSON() ([]byte, error) {
	return json.Marshal(recordJSON{
		Owner:                 r.Owner,
		Repo:                  r.Repo,
		Source:                r.Source,
		LogType:               r.LogType,
		Date:                  r.Timestamp.Format(dateLayout),
		Time:                  r.Clock(),
		CommandType:           r.CommandType,
		Command:               r.Command,
		NodePath:              r.NodePath,
		AdditionalInformation: r.AdditionalInformation,
		RawLine:               r.Raw,
	})
}

func (r *Record) UnmarshalJSON(data []byte) error {
	var v recordJSON
	if err := json.Unmarshal(data, &v); err != nil {
		return err
	}
	ts, err := time.Parse(dateLayout+" "+timeLayout, v.Date+" "+v.Time)
	if err != nil {
		return fmt.Errorf("record timestamp: %w", err)
	}
	*r = Record{
		Owner:                 v.Owner,
		Repo:                  v.Repo,
		Source:                v.Source,
		LogType:               v.LogType,
		Timestamp:             ts,
		CommandType:           v.CommandType,
		Command:               v.Command,
		NodePath:              v.NodePath,
		AdditionalInformation: v.AdditionalInformation,
		Raw:                   v.RawLine,
	}
	return nil
}

// RawLine is an unparsed line read from a log file.
type RawLine struct {
	Text   string
	Source string
}
