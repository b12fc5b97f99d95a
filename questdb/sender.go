package questdb

import (
	"bufio"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"
)

// batchWriter is the seam between the drain worker and the wire protocol.
type batchWriter interface {
	writeBatch(batch []TickEvent) error
	Close() error
}

// lineSender holds one persistent TCP connection to the active ILP port and
// serializes whole batches with a single flush per batch. It is owned
// exclusively by the drain worker; no locking needed.
type lineSender struct {
	conn         net.Conn
	buf          *bufio.Writer
	flushTimeout time.Duration
}

// ILP tag values must escape comma, equals and space.
var tagEscaper = strings.NewReplacer(",", `\,`, "=", `\=`, " ", `\ `)

func newLineSender(addr string, dialTimeout, flushTimeout time.Duration) (*lineSender, error) {
	conn, err := net.DialTimeout("tcp", addr, dialTimeout)
	if err != nil {
		return nil, fmt.Errorf("failed to connect to ILP endpoint %s: %w", addr, err)
	}

	return &lineSender{
		conn:         conn,
		buf:          bufio.NewWriterSize(conn, 64*1024),
		flushTimeout: flushTimeout,
	}, nil
}

// writeBatch appends one line-protocol row per tick, then flushes the whole
// batch in one network write. The caller discards the batch whether or not
// this succeeds.
func (s *lineSender) writeBatch(batch []TickEvent) error {
	if err := s.conn.SetWriteDeadline(time.Now().Add(s.flushTimeout)); err != nil {
		return fmt.Errorf("failed to set write deadline: %w", err)
	}

	for i := range batch {
		if err := s.appendLine(&batch[i]); err != nil {
			return err
		}
	}

	if err := s.buf.Flush(); err != nil {
		return fmt.Errorf("failed to flush batch: %w", err)
	}
	return nil
}

func (s *lineSender) appendLine(t *TickEvent) error {
	line := buildLine(t)
	if _, err := s.buf.WriteString(line); err != nil {
		return fmt.Errorf("failed to buffer row: %w", err)
	}
	return nil
}

// buildLine renders one ILP row:
// tick_data,token=X,contract_type=FUT ltp=1.0,volume=1i,... <timestamp_ns>
func buildLine(t *TickEvent) string {
	var b strings.Builder
	b.Grow(160)

	b.WriteString("tick_data,token=")
	b.WriteString(tagEscaper.Replace(t.Token))
	if t.ContractType != "" {
		b.WriteString(",contract_type=")
		b.WriteString(tagEscaper.Replace(t.ContractType))
	}

	b.WriteString(" ltp=")
	b.WriteString(formatFloat(t.LTP))
	b.WriteString(",volume=")
	b.WriteString(strconv.FormatInt(t.Volume, 10))
	b.WriteString("i,oi=")
	b.WriteString(strconv.FormatInt(t.OI, 10))
	b.WriteString("i,open_price=")
	b.WriteString(formatFloat(t.Open))
	b.WriteString(",high_price=")
	b.WriteString(formatFloat(t.High))
	b.WriteString(",low_price=")
	b.WriteString(formatFloat(t.Low))
	b.WriteString(",change_pct=")
	b.WriteString(formatFloat(t.ChangePct))

	b.WriteByte(' ')
	b.WriteString(strconv.FormatInt(t.Timestamp.UnixNano(), 10))
	b.WriteByte('\n')

	return b.String()
}

func formatFloat(v float64) string {
	return strconv.FormatFloat(v, 'f', -1, 64)
}

func (s *lineSender) Close() error {
	return s.conn.Close()
}
