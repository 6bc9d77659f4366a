package ledger

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"time"
)

// RecordCapture は撮影イベントを記録する
//
// 撮影行の挿入とセッション集計値の更新を1つのトランザクションで行う。
// どちらか一方だけが永続化されることはない。参照先のセッションが
// 存在しない場合はErrNotFoundを返し、撮影行も残らない。
func (l *Ledger) RecordCapture(ctx context.Context, sessionID, filename string, timestamp time.Time, settings CaptureSettings, bracket BracketInfo) (*Capture, error) {
	var rec *Capture
	err := l.withWriteTx(ctx, func(tx *sql.Tx) error {
		// セッションの存在確認と現在の集計値の読み取り
		sess, err := scanSession(tx.QueryRowContext(ctx,
			"SELECT "+sessionColumns+" FROM sessions WHERE id = ?", sessionID))
		if err == sql.ErrNoRows {
			return fmt.Errorf("%w: %s", ErrNotFound, sessionID)
		}
		if err != nil {
			return fmt.Errorf("セッションの読み取りに失敗: %w", err)
		}

		now := l.now().Unix()

		var sourceIDs any
		if len(bracket.SourceBracketID) > 0 {
			b, err := json.Marshal(bracket.SourceBracketID)
			if err != nil {
				return fmt.Errorf("合成元IDのエンコードに失敗: %w", err)
			}
			sourceIDs = string(b)
		}

		res, err := tx.ExecContext(ctx, `
			INSERT INTO captures (
				session_id, filename, timestamp,
				iso, shutter_speed, exposure_compensation, lux, wb_temp, awb_mode, analog_gain, digital_gain,
				is_bracket, bracket_index, bracket_ev_offset, is_hdr_result, hdr_result_id, source_bracket_ids,
				created_at
			) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		`,
			sessionID, filename, timestamp.Unix(),
			settings.ISO, settings.ShutterSpeed, settings.ExposureCompensation,
			settings.Lux, settings.WBTemp, settings.AWBMode,
			settings.AnalogGain, settings.DigitalGain,
			boolToInt(bracket.IsBracket), bracket.BracketIndex, bracket.BracketEVOffset,
			boolToInt(bracket.IsHDRResult), bracket.HDRResultID, sourceIDs,
			now,
		)
		if err != nil {
			return fmt.Errorf("撮影行の挿入に失敗: %w", err)
		}
		captureID, err := res.LastInsertId()
		if err != nil {
			return fmt.Errorf("撮影IDの取得に失敗: %w", err)
		}

		// 集計値を逐次更新する（全履歴の再集計はしない）
		agg := sessionAggregates(sess)
		agg.addSample(settings)

		_, err = tx.ExecContext(ctx, `
			UPDATE sessions SET
				image_count = image_count + 1,
				lux_min = ?, lux_max = ?, lux_avg = ?, lux_count = ?,
				iso_min = ?, iso_max = ?, wb_min = ?, wb_max = ?,
				updated_at = ?
			WHERE id = ?
		`,
			agg.luxMin, agg.luxMax, agg.luxAvg, agg.luxCount,
			agg.isoMin, agg.isoMax, agg.wbMin, agg.wbMax,
			now, sessionID,
		)
		if err != nil {
			return fmt.Errorf("集計値の更新に失敗: %w", err)
		}

		rec = &Capture{
			ID:        captureID,
			SessionID: sessionID,
			Filename:  filename,
			Timestamp: timestamp,
			Settings:  settings,
			Bracket:   bracket,
			CreatedAt: time.Unix(now, 0),
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return rec, nil
}

// GetCaptures はセッションの撮影イベントを時系列順に取得する
func (l *Ledger) GetCaptures(ctx context.Context, sessionID string) ([]Capture, error) {
	rows, err := l.db.QueryContext(ctx, `
		SELECT id, session_id, filename, timestamp,
			iso, shutter_speed, exposure_compensation, lux, wb_temp, awb_mode, analog_gain, digital_gain,
			is_bracket, bracket_index, bracket_ev_offset, is_hdr_result, hdr_result_id, source_bracket_ids,
			created_at
		FROM captures
		WHERE session_id = ?
		ORDER BY timestamp ASC, id ASC
	`, sessionID)
	if err != nil {
		return nil, fmt.Errorf("撮影イベントの取得に失敗: %w", err)
	}
	defer func() { _ = rows.Close() }()

	var captures []Capture
	for rows.Next() {
		c, err := scanCapture(rows)
		if err != nil {
			return nil, fmt.Errorf("撮影イベントの読み取りに失敗: %w", err)
		}
		captures = append(captures, *c)
	}
	return captures, rows.Err()
}

// scanCapture は1行をCaptureに変換する
func scanCapture(row rowScanner) (*Capture, error) {
	var (
		c                    Capture
		timestamp, createdAt int64
		iso                  sql.NullInt64
		shutter, evComp      sql.NullFloat64
		lux                  sql.NullFloat64
		wbTemp               sql.NullInt64
		awbMode              sql.NullString
		analogGain           sql.NullFloat64
		digitalGain          sql.NullFloat64
		isBracket            int
		bracketIndex         sql.NullInt64
		bracketEV            sql.NullFloat64
		isHDRResult          int
		hdrResultID          sql.NullInt64
		sourceIDs            sql.NullString
	)

	err := row.Scan(
		&c.ID, &c.SessionID, &c.Filename, &timestamp,
		&iso, &shutter, &evComp, &lux, &wbTemp, &awbMode, &analogGain, &digitalGain,
		&isBracket, &bracketIndex, &bracketEV, &isHDRResult, &hdrResultID, &sourceIDs,
		&createdAt,
	)
	if err != nil {
		return nil, err
	}

	c.Timestamp = time.Unix(timestamp, 0)
	c.CreatedAt = time.Unix(createdAt, 0)

	if iso.Valid {
		v := int(iso.Int64)
		c.Settings.ISO = &v
	}
	if shutter.Valid {
		c.Settings.ShutterSpeed = &shutter.Float64
	}
	if evComp.Valid {
		c.Settings.ExposureCompensation = &evComp.Float64
	}
	if lux.Valid {
		c.Settings.Lux = &lux.Float64
	}
	if wbTemp.Valid {
		v := int(wbTemp.Int64)
		c.Settings.WBTemp = &v
	}
	if awbMode.Valid {
		c.Settings.AWBMode = &awbMode.String
	}
	if analogGain.Valid {
		c.Settings.AnalogGain = &analogGain.Float64
	}
	if digitalGain.Valid {
		c.Settings.DigitalGain = &digitalGain.Float64
	}

	c.Bracket.IsBracket = isBracket != 0
	c.Bracket.IsHDRResult = isHDRResult != 0
	if bracketIndex.Valid {
		v := int(bracketIndex.Int64)
		c.Bracket.BracketIndex = &v
	}
	if bracketEV.Valid {
		c.Bracket.BracketEVOffset = &bracketEV.Float64
	}
	if hdrResultID.Valid {
		c.Bracket.HDRResultID = &hdrResultID.Int64
	}
	if sourceIDs.Valid && sourceIDs.String != "" {
		if err := json.Unmarshal([]byte(sourceIDs.String), &c.Bracket.SourceBracketID); err != nil {
			return nil, fmt.Errorf("合成元IDのデコードに失敗: %w", err)
		}
	}

	return &c, nil
}

func boolToInt(b bool) int {
	if b {
		return 1
	}
	return 0
}
