package constants

// HeaderSeparatorLength is the width of the rule printed under section headers.
const HeaderSeparatorLength = 40

// NotificationBodyPreviewLength bounds how much of a notification body is shown in tables.
const NotificationBodyPreviewLength = 60

// Time unit conversions used when formatting relative timestamps.
const (
	SecondsPerMinute = 60
	MinutesPerHour   = 60
	HoursPerDay      = 24
)
