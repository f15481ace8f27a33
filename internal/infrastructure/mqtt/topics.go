package mqtt

import (
	"fmt"
	"strings"
)

// TopicPrefixDevice is the namespace every printer publishes under.
//
// Printers use: device/{serial}/report for state and device/{serial}/request
// for commands addressed to them. Only report traffic is consumed here.
const TopicPrefixDevice = "device"

// Topics provides builders for printer MQTT topics.
//
//	topics := mqtt.Topics{}
//	reportTopic := topics.DeviceReport("01S00C123456789")
//	// Returns: "device/01S00C123456789/report"
type Topics struct{}

// DeviceReport returns the state report topic of one printer.
//
// Example: device/01S00C123456789/report
func (Topics) DeviceReport(serial string) string {
	return fmt.Sprintf("%s/%s/report", TopicPrefixDevice, serial)
}

// AllDeviceReports returns a pattern matching the report topic of any printer.
//
// Pattern: device/+/report
func (Topics) AllDeviceReports() string {
	return fmt.Sprintf("%s/+/report", TopicPrefixDevice)
}

// AllDevices returns a pattern matching every topic under the device namespace.
//
// Pattern: device/#
func (Topics) AllDevices() string {
	return TopicPrefixDevice + "/#"
}

// SerialFromTopic extracts the printer serial from a device topic.
//
// Returns "" when the topic is not under the device namespace.
//
// Example: device/01S00C123456789/report -> 01S00C123456789
func SerialFromTopic(topic string) string {
	parts := strings.SplitN(topic, "/", 3)
	if len(parts) < 2 || parts[0] != TopicPrefixDevice {
		return ""
	}
	return parts[1]
}
