package config

import "fmt"

// Validate checks a Document for structural mistakes that would otherwise
// surface as confusing errors deep inside object construction. It performs
// declarative validation only and never mutates doc.
func Validate(doc *Document) error {
	gatewayIDs := make(map[string]bool)
	for _, gw := range doc.Gateways {
		if gw.ID == "" {
			return fmt.Errorf("config: gateway missing id attribute")
		}
		if gatewayIDs[gw.ID] {
			return fmt.Errorf("config: duplicate gateway id %q", gw.ID)
		}
		gatewayIDs[gw.ID] = true

		switch gw.Type {
		case "serial":
			if gw.Serial == nil || gw.Serial.Port == "" {
				return fmt.Errorf("config: gateway %q: type=serial requires <serial port=\"...\">", gw.ID)
			}
		case "tcp":
			if gw.TCP == nil || gw.TCP.Address == "" {
				return fmt.Errorf("config: gateway %q: type=tcp requires <tcp address=\"...\">", gw.ID)
			}
		case "":
			return fmt.Errorf("config: gateway %q missing type attribute", gw.ID)
		default:
			return fmt.Errorf("config: gateway %q: unknown type %q", gw.ID, gw.Type)
		}
	}

	type collectionKey struct {
		gateway  string
		registry int
	}
	seenCollections := make(map[collectionKey]bool)

	for _, col := range doc.Collections {
		if !gatewayIDs[col.GatewayID] {
			return fmt.Errorf("config: collection references unknown gateway %q", col.GatewayID)
		}
		if col.RegistryID < 0 || col.RegistryID > 15 {
			return fmt.Errorf("config: collection on gateway %q: registry id %d out of range [0,15]", col.GatewayID, col.RegistryID)
		}
		key := collectionKey{col.GatewayID, col.RegistryID}
		if seenCollections[key] {
			return fmt.Errorf("config: gateway %q: registry id %d used by more than one collection", col.GatewayID, col.RegistryID)
		}
		seenCollections[key] = true

		seenRegisters := make(map[int]bool)
		for _, reg := range col.Registers {
			if reg.ID < 0 || reg.ID > 32767 {
				return fmt.Errorf("config: gateway %q registry %d: register id %d out of range [0,32767]", col.GatewayID, col.RegistryID, reg.ID)
			}
			if seenRegisters[reg.ID] {
				return fmt.Errorf("config: gateway %q registry %d: duplicate register id %d", col.GatewayID, col.RegistryID, reg.ID)
			}
			seenRegisters[reg.ID] = true

			switch reg.Codec.Type {
			case "", "number", "boolean", "hexbinary":
			default:
				return fmt.Errorf("config: register %d: unknown codec type %q", reg.ID, reg.Codec.Type)
			}
		}
	}

	return nil
}
