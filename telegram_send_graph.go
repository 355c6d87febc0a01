package main

import (
	"context"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api"
	"github.com/pivolan/entropy_analyzer/domain/models"
	"github.com/pivolan/entropy_analyzer/plot"
	"github.com/pkg/errors"
	log "github.com/sirupsen/logrus"
)

// maxSizePhoto is the largest chart sent as a photo, bigger ones go as documents.
const maxSizePhoto = 150000

func (h *botHandler) handleChart(ctx context.Context, chatID int64, id string) {
	records, err := h.store.ListAll(ctx)
	if err != nil {
		h.replyError(chatID, storeError(err))
		return
	}
	var rec *models.Record
	for i := range records {
		if records[i].ID == id {
			rec = &records[i]
			break
		}
	}
	if rec == nil {
		h.reply(chatID, fmt.Sprintf("No result with id %s", id))
		return
	}

	graph, err := plot.RecordChart(*rec)
	if err != nil {
		if errors.Is(err, plot.ErrNoData) {
			h.reply(chatID, fmt.Sprintf("%s has no analysed columns", rec.FileName))
			return
		}
		log.WithError(err).WithField("id", id).Error("error drawing chart")
		h.replyError(chatID, err)
		return
	}
	h.sendGraph(chatID, graph, rec.FileName, chartCaption(*rec))
}

// sendGraph uploads a PNG chart, as a photo when it is small enough.
func (h *botHandler) sendGraph(chatID int64, graph []byte, name, caption string) {
	pngFile := tgbotapi.FileBytes{
		Name:  fmt.Sprintf("entropy_%s_%s.png", name, time.Now().Format("20060102-150405")),
		Bytes: graph,
	}

	var msg tgbotapi.Chattable
	if len(graph) < maxSizePhoto {
		photo := tgbotapi.NewPhotoUpload(chatID, pngFile)
		photo.Caption = caption
		msg = photo
	} else {
		doc := tgbotapi.NewDocumentUpload(chatID, pngFile)
		doc.Caption = caption
		msg = doc
	}

	if _, err := h.api.Send(msg); err != nil {
		log.WithError(err).WithField("file", name).Error("error sending chart")
		h.reply(chatID, fmt.Sprintf("Cannot send the chart: %v", err))
	}
}

func chartCaption(rec models.Record) string {
	return fmt.Sprintf("%s\nH = entropy in bits, S = score\nMDS %s, TDS %s, OverallScore %s",
		rec.FileName, formatNullable(rec.MDS), formatNullable(rec.TDS), formatNullable(rec.Overall))
}
