package receipt

import (
	"context"
	"fmt"
	"net"
	"os"
	"strings"
	"time"

	"github.com/mercadoforte/backend-caixa/internal/resilience"
)

// Printer sends a rendered receipt to hardware.
type Printer interface {
	Print(ctx context.Context, data []byte) error
}

// PrinterFunc adapts a function to Printer.
type PrinterFunc func(ctx context.Context, data []byte) error

// Print calls f.
func (f PrinterFunc) Print(ctx context.Context, data []byte) error { return f(ctx, data) }

// NetworkPrinter writes to a raw TCP port, usually 9100.
type NetworkPrinter struct {
	Addr    string
	Timeout time.Duration
}

func (p NetworkPrinter) Print(ctx context.Context, data []byte) error {
	timeout := p.Timeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}
	dialer := net.Dialer{Timeout: timeout}
	conn, err := dialer.DialContext(ctx, "tcp", p.Addr)
	if err != nil {
		return fmt.Errorf("receipt: connect %s: %w", p.Addr, err)
	}
	defer conn.Close()
	_ = conn.SetWriteDeadline(time.Now().Add(timeout))
	if _, err := conn.Write(data); err != nil {
		return fmt.Errorf("receipt: write %s: %w", p.Addr, err)
	}
	return nil
}

// DevicePrinter writes to a device file such as /dev/usb/lp0.
type DevicePrinter struct {
	Path string
}

func (p DevicePrinter) Print(_ context.Context, data []byte) error {
	f, err := os.OpenFile(p.Path, os.O_WRONLY, 0)
	if err != nil {
		return fmt.Errorf("receipt: open %s: %w", p.Path, err)
	}
	defer f.Close()
	if _, err := f.Write(data); err != nil {
		return fmt.Errorf("receipt: write %s: %w", p.Path, err)
	}
	return nil
}

// NullPrinter discards receipts.
type NullPrinter struct{}

func (NullPrinter) Print(context.Context, []byte) error { return nil }

// GuardedPrinter trips a breaker when the printer keeps failing so queued
// jobs back off instead of hammering an unplugged device.
type GuardedPrinter struct {
	Printer Printer
	Breaker *resilience.Breaker
}

func (g GuardedPrinter) Print(ctx context.Context, data []byte) error {
	if g.Breaker == nil {
		return g.Printer.Print(ctx, data)
	}
	return g.Breaker.Execute(ctx, func(ctx context.Context) error {
		return g.Printer.Print(ctx, data)
	})
}

// NewPrinter builds the printer named by kind: network, usb or none.
func NewPrinter(kind, addr, device string, timeout time.Duration) (Printer, error) {
	switch strings.ToLower(strings.TrimSpace(kind)) {
	case "network":
		if addr == "" {
			return nil, fmt.Errorf("receipt: RECEIPT_PRINTER_ADDR is required for a network printer")
		}
		return NetworkPrinter{Addr: addr, Timeout: timeout}, nil
	case "usb":
		if device == "" {
			return nil, fmt.Errorf("receipt: RECEIPT_PRINTER_DEVICE is required for a usb printer")
		}
		return DevicePrinter{Path: device}, nil
	case "", "none":
		return NullPrinter{}, nil
	default:
		return nil, fmt.Errorf("receipt: unknown printer type %q", kind)
	}
}
