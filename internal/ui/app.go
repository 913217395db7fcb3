// Package ui is the desktop front end: pick an image, run detection on the
// server and review the annotated result.
package ui

import (
	"context"
	"fmt"
	"path/filepath"
	"time"

	"fyne.io/fyne/v2"
	"fyne.io/fyne/v2/app"
	"fyne.io/fyne/v2/canvas"
	"fyne.io/fyne/v2/container"
	"fyne.io/fyne/v2/dialog"
	"fyne.io/fyne/v2/storage"
	"fyne.io/fyne/v2/theme"
	"fyne.io/fyne/v2/widget"
	"yolodetect/internal/config"
	"yolodetect/internal/ui/session"
)

type DetectApp struct {
	fyneApp fyne.App
	mainWin fyne.Window

	config  *config.ClientConfig
	session *session.Session
	timeout time.Duration

	selected string
	outcome  *session.Outcome

	inputCanvas  *canvas.Image
	outputCanvas *canvas.Image
	fileLabel    *widget.Label
	statusLabel  *widget.Label
	jsonView     *widget.Entry
	detectButton *widget.Button
	saveButton   *widget.Button
}

func CreateApp(s *session.Session, cfg *config.ClientConfig) *DetectApp {
	a := app.New()
	w := a.NewWindow("Object Detection")

	w.Resize(fyne.NewSize(1200, 700))

	return &DetectApp{
		fyneApp: a,
		mainWin: w,
		config:  cfg,
		session: s,
		timeout: time.Duration(cfg.TimeoutSeconds) * time.Second,
	}
}

func (a *DetectApp) Run() {
	a.inputCanvas = newImagePane()
	a.outputCanvas = newImagePane()

	a.fileLabel = widget.NewLabel("No image selected")
	a.statusLabel = widget.NewLabel(fmt.Sprintf("Server: %s", a.config.APIURL))

	a.jsonView = widget.NewMultiLineEntry()
	a.jsonView.Wrapping = fyne.TextWrapWord
	a.jsonView.Disable()

	a.detectButton = widget.NewButtonWithIcon("Detect", theme.SearchIcon(), a.detect)
	a.detectButton.Disable()

	a.saveButton = widget.NewButtonWithIcon("Save JSON", theme.DocumentSaveIcon(), a.saveJSON)
	a.saveButton.Disable()

	sidebar := container.NewVBox(
		widget.NewLabelWithStyle("Image", fyne.TextAlignLeading, fyne.TextStyle{Bold: true}),
		widget.NewButtonWithIcon("Open...", theme.FolderOpenIcon(), a.openImage),
		a.fileLabel,
		widget.NewSeparator(),
		a.detectButton,
		a.saveButton,
		widget.NewSeparator(),
		a.statusLabel,
	)

	images := container.NewGridWithColumns(2,
		container.NewBorder(widget.NewLabel("Input"), nil, nil, nil, a.inputCanvas),
		container.NewBorder(widget.NewLabel("Detections"), nil, nil, nil, a.outputCanvas),
	)
	results := container.NewVSplit(images, container.NewScroll(a.jsonView))
	results.SetOffset(0.75)

	split := container.NewHSplit(
		container.NewPadded(sidebar),
		container.NewPadded(results),
	)
	split.SetOffset(0.2)

	a.mainWin.SetContent(split)
	a.mainWin.CenterOnScreen()
	a.mainWin.ShowAndRun()
}

func newImagePane() *canvas.Image {
	img := canvas.NewImageFromImage(nil)
	img.FillMode = canvas.ImageFillContain
	img.SetMinSize(fyne.NewSize(480, 360))
	return img
}

func (a *DetectApp) openImage() {
	open := dialog.NewFileOpen(func(reader fyne.URIReadCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		if reader == nil {
			return
		}
		defer reader.Close()

		a.selected = reader.URI().Path()
		a.outcome = nil
		a.fileLabel.SetText(reader.URI().Name())
		a.inputCanvas.File = a.selected
		a.inputCanvas.Image = nil
		a.inputCanvas.Refresh()
		a.outputCanvas.Image = nil
		a.outputCanvas.Refresh()
		a.jsonView.SetText("")
		a.detectButton.Enable()
		a.saveButton.Disable()
	}, a.mainWin)
	open.SetFilter(storage.NewExtensionFileFilter([]string{".jpg", ".jpeg", ".png", ".bmp", ".gif", ".tif", ".tiff", ".webp"}))
	open.Show()
}

func (a *DetectApp) detect() {
	if a.selected == "" {
		return
	}
	path := a.selected

	a.detectButton.Disable()
	a.statusLabel.SetText("Detecting...")

	go func() {
		ctx, cancel := context.WithTimeout(context.Background(), a.timeout)
		defer cancel()

		outcome, err := a.session.Run(ctx, path)

		fyne.Do(func() {
			a.detectButton.Enable()
			if err != nil {
				a.statusLabel.SetText("Detection failed")
				// The server's message is shown unchanged.
				dialog.ShowError(err, a.mainWin)
				return
			}

			a.outcome = outcome
			a.inputCanvas.Image = outcome.Image
			a.inputCanvas.Refresh()
			a.outputCanvas.Image = outcome.Annotated
			a.outputCanvas.Refresh()
			a.jsonView.SetText(string(outcome.Prediction.Raw))
			a.statusLabel.SetText(fmt.Sprintf("%d object(s) found", outcome.Prediction.Result.NumDetections))
			a.saveButton.Enable()
		})
	}()
}

func (a *DetectApp) saveJSON() {
	if a.outcome == nil {
		return
	}
	outcome := a.outcome

	save := dialog.NewFileSave(func(writer fyne.URIWriteCloser, err error) {
		if err != nil {
			dialog.ShowError(err, a.mainWin)
			return
		}
		if writer == nil {
			return
		}
		defer writer.Close()

		if _, err := writer.Write(outcome.Prediction.Raw); err != nil {
			dialog.ShowError(fmt.Errorf("failed to save JSON: %w", err), a.mainWin)
			return
		}
		a.statusLabel.SetText("Saved " + writer.URI().Name())
	}, a.mainWin)
	save.SetFileName(filepath.Base(a.session.JSONPath()))
	save.Show()
}
