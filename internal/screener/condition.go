package screener

import (
	"errors"
	"fmt"
)

// ErrInvalidCondition marks a condition that failed validation.
var ErrInvalidCondition = errors.New("invalid screening condition")

// Bollinger gate options accepted over the wire
var (
	validBBPeriods     = map[int]bool{10: true, 20: true, 30: true}
	validBBMultipliers = map[float64]bool{1.5: true, 2.0: true, 3.0: true}
	validBBPositions   = map[string]bool{"all": true, "upper": true, "middle": true, "lower": true}
)

// Condition is the declarative predicate set of one screening run.
// 필드명은 게이트웨이 호환 camelCase
type Condition struct {
	MA60Enabled  bool `json:"ma60Enabled"`
	MA60Min      int  `json:"ma60Min"`
	MA60Max      int  `json:"ma60Max"`
	MA112Enabled bool `json:"ma112Enabled"`
	MA112Min     int  `json:"ma112Min"`
	MA112Max     int  `json:"ma112Max"`
	MA224Enabled bool `json:"ma224Enabled"`
	MA224Min     int  `json:"ma224Min"`
	MA224Max     int  `json:"ma224Max"`
	MAAlignment  bool `json:"maAlignment"`

	BBEnabled    bool    `json:"bbEnabled"`
	BBPeriod     int     `json:"bbPeriod"`     // 10|20|30
	BBMultiplier float64 `json:"bbMultiplier"` // 1.5|2.0|3.0
	BBPosition   string  `json:"bbPosition"`   // all|upper|middle|lower
	BBUpperBreak bool    `json:"bbUpperBreak"`
	BBLowerBreak bool    `json:"bbLowerBreak"`

	VolumeEnabled  bool    `json:"volumeEnabled"`
	VolumeMultiple float64 `json:"volumeMultiple"`

	PriceChangeEnabled bool    `json:"priceChangeEnabled"`
	PriceChangeMin     float64 `json:"priceChangeMin"`
	PriceChangeMax     float64 `json:"priceChangeMax"`

	MarketCapEnabled bool  `json:"marketCapEnabled"`
	MarketCapMin     int64 `json:"marketCapMin"`
	MarketCapMax     int64 `json:"marketCapMax"`

	PEREnabled bool    `json:"perEnabled"`
	PERMin     float64 `json:"perMin"`
	PERMax     float64 `json:"perMax"`

	PBREnabled bool    `json:"pbrEnabled"`
	PBRMin     float64 `json:"pbrMin"`
	PBRMax     float64 `json:"pbrMax"`

	ExcludeETF        bool `json:"excludeETF"`
	ExcludeETN        bool `json:"excludeETN"`
	ExcludeManagement bool `json:"excludeManagement"`

	TargetCodes []string `json:"targetCodes"`
}

// Normalize fills Bollinger defaults for a partially specified gate.
func (c *Condition) Normalize() {
	if c.BBPeriod == 0 {
		c.BBPeriod = 20
	}
	if c.BBMultiplier == 0 {
		c.BBMultiplier = 2.0
	}
	if c.BBPosition == "" {
		c.BBPosition = "all"
	}
}

// Validate rejects out-of-range gate options.
func (c *Condition) Validate() error {
	if c.BBEnabled {
		if !validBBPeriods[c.BBPeriod] {
			return fmt.Errorf("%w: bbPeriod must be 10, 20 or 30, got %d", ErrInvalidCondition, c.BBPeriod)
		}
		if !validBBMultipliers[c.BBMultiplier] {
			return fmt.Errorf("%w: bbMultiplier must be 1.5, 2.0 or 3.0, got %v", ErrInvalidCondition, c.BBMultiplier)
		}
		if !validBBPositions[c.BBPosition] {
			return fmt.Errorf("%w: bbPosition must be one of all/upper/middle/lower, got %q", ErrInvalidCondition, c.BBPosition)
		}
	}
	if c.VolumeEnabled && c.VolumeMultiple < 1 {
		return fmt.Errorf("%w: volumeMultiple must be >= 1, got %v", ErrInvalidCondition, c.VolumeMultiple)
	}
	if c.MA60Enabled && c.MA60Min > c.MA60Max {
		return fmt.Errorf("%w: ma60Min > ma60Max", ErrInvalidCondition)
	}
	if c.MA112Enabled && c.MA112Min > c.MA112Max {
		return fmt.Errorf("%w: ma112Min > ma112Max", ErrInvalidCondition)
	}
	if c.MA224Enabled && c.MA224Min > c.MA224Max {
		return fmt.Errorf("%w: ma224Min > ma224Max", ErrInvalidCondition)
	}
	if c.PriceChangeEnabled && c.PriceChangeMin > c.PriceChangeMax {
		return fmt.Errorf("%w: priceChangeMin > priceChangeMax", ErrInvalidCondition)
	}
	if c.MarketCapEnabled && c.MarketCapMin > c.MarketCapMax {
		return fmt.Errorf("%w: marketCapMin > marketCapMax", ErrInvalidCondition)
	}
	if c.PEREnabled && c.PERMin > c.PERMax {
		return fmt.Errorf("%w: perMin > perMax", ErrInvalidCondition)
	}
	if c.PBREnabled && c.PBRMin > c.PBRMax {
		return fmt.Errorf("%w: pbrMin > pbrMax", ErrInvalidCondition)
	}
	return nil
}

// NeedsFundamentals reports whether a quote call is required.
func (c *Condition) NeedsFundamentals() bool {
	return c.MarketCapEnabled || c.PEREnabled || c.PBREnabled
}
