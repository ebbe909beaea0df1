package storage

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/google/uuid"

	"github.com/timone-gs/timone-link/internal/protocol"
)

// SaveTelemetry archiviert eine Telemetrie-Nachricht
func (p *PostgresClient) SaveTelemetry(ctx context.Context, tm protocol.Telemetry) (uuid.UUID, error) {
	recordJSON, err := json.Marshal(tm.Record)
	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to marshal record: %w", err)
	}

	var id uuid.UUID
	err = p.pool.QueryRow(ctx, `
		INSERT INTO telemetry (peripheral, name, kind, record, received_at)
		VALUES ($1, $2, $3, $4, $5)
		RETURNING id
	`, int(tm.Peripheral), tm.Name, tm.Kind, recordJSON, tm.ReceivedAt).Scan(&id)

	if err != nil {
		return uuid.Nil, fmt.Errorf("failed to insert telemetry: %w", err)
	}

	return id, nil
}

// RecentTelemetry lädt die letzten n archivierten Nachrichten, neueste zuerst
func (p *PostgresClient) RecentTelemetry(ctx context.Context, limit int) ([]TelemetryEntry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, peripheral, name, kind, record, received_at
		FROM telemetry
		ORDER BY received_at DESC
		LIMIT $1
	`, limit)

	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer rows.Close()

	entries := make([]TelemetryEntry, 0, limit)

	for rows.Next() {
		var entry TelemetryEntry
		err := rows.Scan(&entry.ID, &entry.Peripheral, &entry.Name, &entry.Kind, &entry.Record, &entry.ReceivedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan telemetry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}

// RecentTelemetryByPeripheral lädt die letzten n Nachrichten eines Peripherals
func (p *PostgresClient) RecentTelemetryByPeripheral(ctx context.Context, peripheral protocol.PeripheralID, limit int) ([]TelemetryEntry, error) {
	rows, err := p.pool.Query(ctx, `
		SELECT id, peripheral, name, kind, record, received_at
		FROM telemetry
		WHERE peripheral = $1
		ORDER BY received_at DESC
		LIMIT $2
	`, int(peripheral), limit)

	if err != nil {
		return nil, fmt.Errorf("failed to query telemetry: %w", err)
	}
	defer rows.Close()

	entries := make([]TelemetryEntry, 0, limit)

	for rows.Next() {
		var entry TelemetryEntry
		err := rows.Scan(&entry.ID, &entry.Peripheral, &entry.Name, &entry.Kind, &entry.Record, &entry.ReceivedAt)
		if err != nil {
			return nil, fmt.Errorf("failed to scan telemetry: %w", err)
		}
		entries = append(entries, entry)
	}

	return entries, nil
}
