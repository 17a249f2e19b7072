package ui

import (
	"github.com/charmbracelet/bubbles/list"
)

var _ list.Item = featureItem{}

// featureItem is one entry of the "how it works" feature list, implementing [list.Item].
type featureItem struct {
	title string
	desc  string
}

func (i featureItem) FilterValue() string { return i.title }
func (i featureItem) Title() string       { return i.title }
func (i featureItem) Description() string { return i.desc }

var features = []list.Item{
	featureItem{title: "High quality", desc: "A neural network model separates vocals from the accompaniment"},
	featureItem{title: "Fast processing", desc: "Even long tracks are processed quickly"},
	featureItem{title: "Many formats", desc: "MP3, WAV, FLAC, AAC, OGG and more"},
	featureItem{title: "2, 4 and 5 stems", desc: "The model can split a mix into up to five separate tracks"},
}

const howItWorks = "The service uses Spleeter, an AI audio separation tool. " +
	"A pretrained U-Net model, trained on a large dataset, analyses the spectrogram " +
	"of the audio file and isolates its components."

func newFeatureList(width, height int) list.Model {
	l := list.New(features, list.NewDefaultDelegate(), width, height)
	l.Title = "Features"
	l.SetShowHelp(false)
	l.SetShowStatusBar(false)
	l.SetFilteringEnabled(false)
	return l
}
