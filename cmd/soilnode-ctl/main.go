// Command soilnode-ctl is a small controller for exercising a node's
// command link over TCP: it sends one command and prints the decoded
// response.
package main

import (
	"encoding/binary"
	"encoding/hex"
	"flag"
	"fmt"
	"io"
	"net"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/verdantworks/soilnode/internal/protocol"
)

var commands = map[string]protocol.Opcode{
	"latest":             protocol.OpGetLatestSample,
	"latest-v2":          protocol.OpGetLatestSampleV2,
	"status":             protocol.OpGetSystemStatus,
	"history":            protocol.OpGetHistory,
	"reset":              protocol.OpSystemReset,
	"info":               protocol.OpGetDeviceInfo,
	"button":             protocol.OpGetDigitalInput,
	"get-profile":        protocol.OpGetPlantProfile,
	"save-profile":       protocol.OpSavePlantProfile,
	"get-network":        protocol.OpGetNetworkConfig,
	"save-network":       protocol.OpSaveNetworkConfig,
	"connect":            protocol.OpNetworkConnect,
	"disconnect":         protocol.OpNetworkDisconnect,
	"get-timezone":       protocol.OpGetTimezone,
	"set-timezone":       protocol.OpSetTimezone,
	"save-timezone":      protocol.OpSaveTimezone,
	"sync-time":          protocol.OpSyncTime,
}

func main() {
	var (
		addr    = flag.String("addr", "127.0.0.1:7420", "Node command link address")
		arg     = flag.String("arg", "", "Command argument (timezone name, history day count)")
		timeout = flag.Duration("timeout", 5*time.Second, "Response timeout")
	)
	flag.Parse()

	if flag.NArg() != 1 {
		fmt.Fprintf(os.Stderr, "Usage: %s [flags] <command>\nCommands: %s\n", os.Args[0], commandList())
		flag.PrintDefaults()
		os.Exit(1)
	}

	name := flag.Arg(0)
	opcode, ok := commands[name]
	if !ok {
		fmt.Fprintf(os.Stderr, "Unknown command %q. Commands: %s\n", name, commandList())
		os.Exit(1)
	}

	payload, err := buildPayload(name, *arg)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	conn, err := net.DialTimeout("tcp", *addr, *timeout)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error connecting to %s: %v\n", *addr, err)
		os.Exit(1)
	}
	defer conn.Close()

	frame := protocol.EncodeRequest(protocol.Request{Opcode: opcode, Seq: 1, Payload: payload})
	if _, err := conn.Write(frame); err != nil {
		fmt.Fprintf(os.Stderr, "Error sending command: %v\n", err)
		os.Exit(1)
	}

	conn.SetReadDeadline(time.Now().Add(*timeout))
	header := make([]byte, protocol.ResponseHeaderSize)
	if _, err := io.ReadFull(conn, header); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading response: %v\n", err)
		os.Exit(1)
	}
	respPayload := make([]byte, binary.LittleEndian.Uint16(header[3:5]))
	if _, err := io.ReadFull(conn, respPayload); err != nil {
		fmt.Fprintf(os.Stderr, "Error reading response payload: %v\n", err)
		os.Exit(1)
	}

	fmt.Printf("opcode=0x%02X status=%d seq=%d\n", header[0], header[1], header[2])
	if len(respPayload) > 0 {
		fmt.Println(hex.Dump(respPayload))
	}
}

func buildPayload(name, arg string) ([]byte, error) {
	switch name {
	case "history":
		days := 7
		if arg != "" {
			parsed, err := strconv.Atoi(arg)
			if err != nil {
				return nil, fmt.Errorf("history argument must be a day count: %w", err)
			}
			days = parsed
		}
		return []byte{byte(days)}, nil
	case "set-timezone":
		if arg == "" {
			return nil, fmt.Errorf("set-timezone requires -arg <IANA name>")
		}
		return []byte(arg), nil
	default:
		return nil, nil
	}
}

func commandList() string {
	names := make([]string, 0, len(commands))
	for name := range commands {
		names = append(names, name)
	}
	return strings.Join(names, ", ")
}
