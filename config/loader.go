package config

import (
	"encoding/xml"
	"fmt"
	"io"
	"log/slog"
	"os"
	"strconv"
	"strings"

	"github.com/brackwater/gep"
)

// Loaded is the object graph built from a Document: one Gateway per
// <gateway> element and one RegisterCollection per <collection> element,
// indexed by the ids used in the source document.
type Loaded struct {
	Gateways    map[string]*gep.Gateway
	Collections map[string]*gep.RegisterCollection
	Registers   map[string]*gep.Register // keyed "collectionGatewayID/registerID"
}

// LoadFile reads and builds the object graph described by an XML file at
// path. Gateways are constructed but not started; call Start on each
// returned Gateway once the graph is wired to an AutoUpdater.
func LoadFile(path string, logger *slog.Logger) (*Loaded, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("config: open %s: %w", path, err)
	}
	defer f.Close()
	return Load(f, logger)
}

// Load parses r as a Document and builds its object graph.
func Load(r io.Reader, logger *slog.Logger) (*Loaded, error) {
	var doc Document
	if err := xml.NewDecoder(r).Decode(&doc); err != nil {
		return nil, fmt.Errorf("config: parse document: %w", err)
	}
	if err := Validate(&doc); err != nil {
		return nil, err
	}
	return build(&doc, logger)
}

func build(doc *Document, logger *slog.Logger) (*Loaded, error) {
	loaded := &Loaded{
		Gateways:    make(map[string]*gep.Gateway),
		Collections: make(map[string]*gep.RegisterCollection),
		Registers:   make(map[string]*gep.Register),
	}

	for _, gw := range doc.Gateways {
		socket, err := buildSocket(gw)
		if err != nil {
			return nil, fmt.Errorf("config: gateway %q: %w", gw.ID, err)
		}
		messenger := gep.NewGEPMessenger(socket, gw.MessengerID, logger)
		loaded.Gateways[gw.ID] = gep.NewGateway(messenger, logger)
	}

	for _, col := range doc.Collections {
		gateway, ok := loaded.Gateways[col.GatewayID]
		if !ok {
			return nil, fmt.Errorf("config: collection references unknown gateway %q", col.GatewayID)
		}
		collection, err := gep.NewRegisterCollection(gateway, col.RegistryID)
		if err != nil {
			return nil, fmt.Errorf("config: collection on gateway %q: %w", col.GatewayID, err)
		}
		loaded.Collections[col.GatewayID] = collection

		settings := gep.DefaultConnectionSettings
		if col.TimeoutMs > 0 {
			settings = settings.WithTimeout(col.TimeoutMs)
		}

		for _, reg := range col.Registers {
			codec, err := buildCodec(reg.Codec)
			if err != nil {
				return nil, fmt.Errorf("config: register %d: %w", reg.ID, err)
			}
			r, err := collection.AddRegister(reg.ID, codec, settings, reg.ReadOnly)
			if err != nil {
				return nil, fmt.Errorf("config: register %d: %w", reg.ID, err)
			}
			if reg.UpdateInterval != "" {
				intervalMs, err := parseUpdateInterval(reg.UpdateInterval)
				if err != nil {
					return nil, fmt.Errorf("config: register %d: %w", reg.ID, err)
				}
				if err := r.SetUpdateIntervalMs(intervalMs); err != nil {
					return nil, fmt.Errorf("config: register %d: %w", reg.ID, err)
				}
			}
			loaded.Registers[fmt.Sprintf("%s/%d", col.GatewayID, reg.ID)] = r
		}
	}

	return loaded, nil
}

func buildSocket(gw Gateway) (gep.FullDuplexStreamSocket, error) {
	switch gw.Type {
	case "serial":
		if gw.Serial == nil {
			return nil, fmt.Errorf("type=serial requires a <serial> element")
		}
		socket := gep.NewSerialSocket(gw.Serial.Port)
		if gw.Serial.BaudRate > 0 {
			socket.Config.BaudRate = gw.Serial.BaudRate
		}
		if gw.Serial.DataBits > 0 {
			socket.Config.DataBits = gw.Serial.DataBits
		}
		if gw.Serial.StopBits > 0 {
			socket.Config.StopBits = gw.Serial.StopBits
		}
		if gw.Serial.Parity != "" {
			socket.Config.Parity = gw.Serial.Parity
		}
		return socket, nil
	case "tcp":
		if gw.TCP == nil {
			return nil, fmt.Errorf("type=tcp requires a <tcp> element")
		}
		return gep.NewTCPSocket(gw.TCP.Address), nil
	default:
		return nil, fmt.Errorf("unknown gateway type %q", gw.Type)
	}
}

// buildCodec mirrors the reference loader's default codec: an
// untransformed integer number codec when none is specified.
func buildCodec(c Codec) (gep.Codec, error) {
	switch c.Type {
	case "", "number":
		scale := c.Scale
		if scale == 0 {
			scale = 1
		}
		return gep.NewNumberCodec(scale, c.Shift, c.Decimals), nil
	case "boolean":
		return gep.BooleanCodec, nil
	case "hexbinary":
		return gep.NewHexBinaryCodec(c.MinLength, c.MaxLength, c.Spaces), nil
	default:
		return nil, fmt.Errorf("unknown codec type %q", c.Type)
	}
}

// parseUpdateInterval parses a register's update-interval attribute: a
// plain number of milliseconds, or a number followed by "s" for seconds.
func parseUpdateInterval(s string) (int, error) {
	s = strings.TrimSpace(s)
	if rest, ok := strings.CutSuffix(s, "s"); ok {
		seconds, err := strconv.ParseFloat(strings.TrimSpace(rest), 64)
		if err != nil {
			return 0, fmt.Errorf("invalid update-interval %q: %w", s, err)
		}
		return int(seconds * 1000), nil
	}
	ms, err := strconv.Atoi(s)
	if err != nil {
		return 0, fmt.Errorf("invalid update-interval %q: %w", s, err)
	}
	return ms, nil
}

// HintSettings translates a Collection's hint attributes into a
// gep.HintSettings value. HintStrategy is matched case-insensitively.
func HintSettings(col Collection) gep.HintSettings {
	if col.HintIntervalMs <= 0 {
		return gep.HintSettings{}
	}
	strategy := gep.StrategySemiGreedy
	switch strings.ToLower(col.HintStrategy) {
	case "simple":
		strategy = gep.StrategySimple
	case "greedy":
		strategy = gep.StrategyGreedy
	}
	return gep.HintSettings{
		Enabled:    true,
		IntervalMs: col.HintIntervalMs,
		TimeoutMs:  col.HintIntervalMs,
		Strategy:   strategy,
	}
}
