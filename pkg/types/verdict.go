// Copyright Mesh Intelligence Inc., 2026. All rights reserved.

package types

// Verdict is the classifier's decision for one paper.
type Verdict struct {
	// Relevant reports whether the paper is about language models in science.
	Relevant bool `json:"relevant" yaml:"relevant"`

	// Architectures lists model architectures the paper uses (e.g. "transformer").
	Architectures []string `json:"architectures,omitempty" yaml:"architectures,omitempty"`

	// Reason is a one-sentence justification returned by the model.
	Reason string `json:"reason,omitempty" yaml:"reason,omitempty"`

	// Skipped is set when the paper was not sent to the model because it
	// lacks a title or abstract.
	Skipped bool `json:"skipped,omitempty" yaml:"skipped,omitempty"`
}

// CuratedPaper is a catalog entry a human has confirmed, used as a few-shot
// example for the classifier.
type CuratedPaper struct {
	Title         string   `json:"title" yaml:"title"`
	Abstract      string   `json:"abstract" yaml:"abstract"`
	Relevant      bool     `json:"relevant" yaml:"relevant"`
	Architectures []string `json:"architectures" yaml:"architectures"`
}
