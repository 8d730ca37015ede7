// Package config loads gateway and register collection definitions from an
// XML document, mirroring the reference registry package's XML loader.
package config

import "encoding/xml"

// Document is the root element of a gep configuration file.
//
//	<gepconfig>
//	  <gateway id="g1" type="serial">
//	    <serial port="/dev/ttyUSB0" baudrate="19200"/>
//	  </gateway>
//	  <gateway id="g2" type="tcp">
//	    <tcp address="192.0.2.1:5000"/>
//	  </gateway>
//	  <collection gateway="g1" registry="0" hint-interval-ms="500">
//	    <register id="1" name="temperature" read-only="true">
//	      <codec type="number" scale="0.1" decimals="1"/>
//	    </register>
//	  </collection>
//	</gepconfig>
type Document struct {
	XMLName     xml.Name     `xml:"gepconfig"`
	Gateways    []Gateway    `xml:"gateway"`
	Collections []Collection `xml:"collection"`
}

// Gateway describes one Messenger endpoint: exactly one of Serial or TCP
// must be set, matching Type.
type Gateway struct {
	ID          string       `xml:"id,attr"`
	Type        string       `xml:"type,attr"`
	MessengerID byte         `xml:"messenger-id,attr"`
	Serial      *SerialPort  `xml:"serial"`
	TCP         *TCPEndpoint `xml:"tcp"`
}

// SerialPort configures a Gateway of type "serial".
type SerialPort struct {
	Port     string `xml:"port,attr"`
	BaudRate int    `xml:"baudrate,attr"`
	DataBits int    `xml:"databits,attr"`
	StopBits int    `xml:"stopbits,attr"`
	Parity   string `xml:"parity,attr"`
}

// TCPEndpoint configures a Gateway of type "tcp".
type TCPEndpoint struct {
	Address string `xml:"address,attr"`
}

// Collection describes one RegisterCollection served by a named gateway.
// TimeoutMs, if positive, overrides the default ConnectionSettings.TimeoutMs
// for every register in the collection.
type Collection struct {
	GatewayID      string     `xml:"gateway,attr"`
	RegistryID     int        `xml:"registry,attr"`
	TimeoutMs      int        `xml:"timeout,attr"`
	HintIntervalMs int        `xml:"hint-interval-ms,attr"`
	HintStrategy   string     `xml:"hint-strategy,attr"`
	Registers      []Register `xml:"register"`
}

// Register describes one Register within a Collection. UpdateInterval is a
// plain number of milliseconds, or a number followed by "s" for seconds
// (e.g. "5s").
type Register struct {
	ID             int    `xml:"id,attr"`
	Name           string `xml:"name,attr"`
	ReadOnly       bool   `xml:"read-only,attr"`
	UpdateInterval string `xml:"update-interval,attr"`
	Codec          Codec  `xml:"codec"`
}

// Codec describes the codec attached to a Register. Type selects which of
// the numeric fields apply: "number" uses Scale/Shift/Decimals, "boolean"
// uses none, "hexbinary" uses MinLength/MaxLength/Spaces.
type Codec struct {
	Type      string  `xml:"type,attr"`
	Scale     float64 `xml:"scale,attr"`
	Shift     float64 `xml:"shift,attr"`
	Decimals  int     `xml:"decimals,attr"`
	MinLength int     `xml:"min-length,attr"`
	MaxLength int     `xml:"max-length,attr"`
	Spaces    bool    `xml:"spaces,attr"`
}
