package link

import (
	"sync"
	"time"

	"github.com/timone-gs/timone-link/internal/protocol"
)

// PendingReply ist die Registrierung "die nächste Response für Peripheral X
// gehört diesem Aufrufer". Pro Peripheral existiert höchstens ein Slot.
type PendingReply struct {
	peripheral   protocol.PeripheralID
	ch           chan protocol.Frame // Kapazität 1, Deliver blockiert nie
	registeredAt time.Time
}

// Peripheral gibt die registrierte Peripheral-ID zurück
func (p *PendingReply) Peripheral() protocol.PeripheralID {
	return p.peripheral
}

// Age gibt an wie lange die Registrierung bereits offen ist
func (p *PendingReply) Age() time.Duration {
	return time.Since(p.registeredAt)
}

// PendingTable ist die geteilte Registrierungstabelle zwischen Dispatcher
// (insert/remove) und FrameReader (deliver). Ein Mutex, keine weiteren
// Sperren — die Kanäle übernehmen die Übergabe.
type PendingTable struct {
	mu    sync.Mutex
	slots map[protocol.PeripheralID]*PendingReply
}

// NewPendingTable erzeugt eine leere Tabelle
func NewPendingTable() *PendingTable {
	return &PendingTable{
		slots: make(map[protocol.PeripheralID]*PendingReply),
	}
}

// InsertOrReplace registriert eine neue Antwort-Erwartung. Eine noch offene
// Registrierung für dasselbe Peripheral wird ersetzt (Supersession) und als
// prev zurückgegeben, damit der Aufrufer das Verdrängen loggen kann.
func (t *PendingTable) InsertOrReplace(peripheral protocol.PeripheralID) (reg, prev *PendingReply) {
	t.mu.Lock()
	defer t.mu.Unlock()

	prev = t.slots[peripheral]
	reg = &PendingReply{
		peripheral:   peripheral,
		ch:           make(chan protocol.Frame, 1),
		registeredAt: time.Now(),
	}
	t.slots[peripheral] = reg
	return reg, prev
}

// Deliver stellt einen Frame an die wartende Registrierung zu und löscht
// den Slot. false wenn niemand auf dieses Peripheral wartet.
func (t *PendingTable) Deliver(frame protocol.Frame) bool {
	t.mu.Lock()
	reg := t.slots[frame.Peripheral]
	if reg != nil {
		delete(t.slots, frame.Peripheral)
	}
	t.mu.Unlock()

	if reg == nil {
		return false
	}
	reg.ch <- frame // Kapazität 1, jede Registrierung wird höchstens einmal beliefert
	return true
}

// Remove entfernt die Registrierung nach Timeout. Nur wenn reg noch der
// aktuelle Slot ist — eine inzwischen ersetzte Registrierung bleibt unberührt.
func (t *PendingTable) Remove(reg *PendingReply) bool {
	t.mu.Lock()
	defer t.mu.Unlock()

	if current, ok := t.slots[reg.peripheral]; ok && current == reg {
		delete(t.slots, reg.peripheral)
		return true
	}
	return false
}

// Len gibt die Anzahl offener Registrierungen zurück
func (t *PendingTable) Len() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return len(t.slots)
}
