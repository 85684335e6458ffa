//
// Copyright (C) 2025 OpenRedTeam.  All rights reserved.
//
// vlmprobe is licensed under the Apache License Version 2.0.
//
//

package conversation

import (
	"fmt"
	"mime"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/openredteam/vlmprobe/dataset"
	"github.com/openredteam/vlmprobe/model"
)

// ResolveImageTurn resolves an image-bearing turn into the message shape
// the backend expects. Exactly one image artifact is produced per call:
// an inline image content part, or raw bytes recorded on the transcript
// with the backend's placeholder token injected into the turn text. Text-only backends keep the text unchanged with no
// artifact.
func ResolveImageTurn(
	item *dataset.Item,
	text string,
	info model.Info,
) (model.Message, []byte, error) {
	if info.ImageDelivery == model.ImageDeliveryNone {
		return model.NewUserMessage(text), nil, nil
	}

	data, err := os.ReadFile(item.MinedImages)
	if err != nil {
		return model.Message{}, nil, &ImageResolutionError{Index: item.Index, Path: item.MinedImages, Err: err}
	}
	format, err := imageFormat(item.MinedImages, data)
	if err != nil {
		return model.Message{}, nil, &ImageResolutionError{Index: item.Index, Path: item.MinedImages, Err: err}
	}

	switch info.ImageDelivery {
	case model.ImageDeliveryInline:
		msg := model.NewUserMessageWithContentParts([]model.ContentPart{
			model.NewTextContentPart(text),
			model.NewImageContentPart(&model.Image{Data: data, Format: format}),
		})
		return msg, nil, nil
	default: // model.ImageDeliveryAttached
		msg := model.Message{
			Role:    model.RoleUser,
			Content: info.ImagePlaceholder + "\n" + strings.TrimSpace(text),
			ContentParts: []model.ContentPart{
				model.NewImageContentPart(&model.Image{Data: data, Format: format}),
			},
		}
		return msg, data, nil
	}
}

// imageFormat determines the image MIME subtype from the file extension,
// sniffing the bytes when the extension is unknown.
func imageFormat(path string, data []byte) (string, error) {
	mimeType := mime.TypeByExtension(filepath.Ext(path))
	if !strings.HasPrefix(mimeType, "image/") {
		mimeType = http.DetectContentType(data)
	}
	if !strings.HasPrefix(mimeType, "image/") {
		return "", fmt.Errorf("unknown image encoding %q", mimeType)
	}
	return strings.TrimPrefix(mimeType, "image/"), nil
}
