package gesture

import (
	"testing"

	"github.com/ayusman/handsignal/internal/detector"
)

func TestClassify(t *testing.T) {
	tests := []struct {
		name   string
		result detector.Result
		want   Gesture
	}{
		{"empty result", nil, None},
		{"empty slice", detector.Result{}, None},
		{"thumbs up", detector.Result{detector.ThumbsUpLandmarks()}, CameraOn},
		{"thumbs down", detector.Result{detector.ThumbsDownLandmarks()}, CameraOff},
		{"index only", detector.Result{detector.IndexUpLandmarks()}, Mute},
		{"peace", detector.Result{detector.PeaceLandmarks()}, Unmute},
		{"fist", detector.Result{detector.FistLandmarks()}, None},
		{"crossed wrists", detector.CrossedWristsLandmarks(), EndCall},
		{
			"two hands apart uses first hand",
			detector.Result{detector.ThumbsDownLandmarks(), detector.ThumbsUpLandmarks()},
			CameraOff,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Classify(tt.result); got != tt.want {
				t.Errorf("Classify() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestClassify_Pure(t *testing.T) {
	result := detector.Result{detector.IndexUpLandmarks()}
	before := result[0]

	first := Classify(result)
	for i := 0; i < 100; i++ {
		if got := Classify(result); got != first {
			t.Fatalf("call %d: Classify() = %v, want %v", i, got, first)
		}
	}
	if result[0] != before {
		t.Error("Classify mutated its input")
	}
}

func TestClassify_TwoHandPrecedence(t *testing.T) {
	// Individual hands would classify as Mute and Unmute; the wrists sit
	// 0.05 apart so EndCall must win.
	first := detector.IndexUpLandmarks()
	second := detector.PeaceLandmarks()
	first.Points[detector.Wrist] = detector.Point3D{X: 0.5, Y: 0.8}
	second.Points[detector.Wrist] = detector.Point3D{X: 0.55, Y: 0.8}

	if got := Classify(detector.Result{first, second}); got != EndCall {
		t.Errorf("Classify() = %v, want %v", got, EndCall)
	}
}

func TestClassifier_EndCallDistance(t *testing.T) {
	hands := detector.Result{detector.ThumbsUpLandmarks(), detector.OpenPalmLandmarks()}
	hands[0].Points[detector.Wrist] = detector.Point3D{X: 0.3, Y: 0.8}
	hands[1].Points[detector.Wrist] = detector.Point3D{X: 0.5, Y: 0.8}

	t.Run("default threshold", func(t *testing.T) {
		g, _ := Classifier{}.Classify(hands)
		if g == EndCall {
			t.Error("wrists 0.2 apart should not be EndCall by default")
		}
	})

	t.Run("wider threshold", func(t *testing.T) {
		g, conf := Classifier{EndCallDistance: 0.25}.Classify(hands)
		if g != EndCall {
			t.Errorf("Classify() = %v, want %v", g, EndCall)
		}
		if conf != 1.0 {
			t.Errorf("confidence = %f, want 1.0", conf)
		}
	})
}

func TestClassifier_Confidence(t *testing.T) {
	if _, conf := (Classifier{}).Classify(nil); conf != 0 {
		t.Errorf("confidence for None = %f, want 0", conf)
	}
	if _, conf := (Classifier{}).Classify(detector.Result{detector.ThumbsUpLandmarks()}); conf != 1.0 {
		t.Errorf("confidence for match = %f, want 1.0", conf)
	}
}

func TestClassify_RulePriority(t *testing.T) {
	// Thumb above the wrist with the index also raised satisfies neither
	// CameraOn (index above thumb) nor CameraOff, but does satisfy Mute.
	hand := detector.IndexUpLandmarks()
	hand.Points[detector.ThumbTip].Y = 0.5

	if got := Classify(detector.Result{hand}); got != Mute {
		t.Errorf("Classify() = %v, want %v", got, Mute)
	}

	// Lowering the index below the thumb makes the thumbs-up verdict win.
	hand.Points[detector.IndexTip].Y = 0.6
	if got := Classify(detector.Result{hand}); got != CameraOn {
		t.Errorf("Classify() = %v, want %v", got, CameraOn)
	}
}
