package sampler

import (
	"math"
	"math/rand"
	"time"

	"github.com/verdantworks/soilnode/internal/types"
)

// Simulator is a SensorSource producing synthetic greenhouse readings. It is
// used when the node runs without probe hardware, letting the full pipeline
// (store, classifier, command link) operate on plausible data.
type Simulator struct {
	baseTemp     float64
	baseHumidity float64
	soilMoisture float64
	rng          *rand.Rand
}

// NewSimulator seeds a simulator with a slowly drying soil model.
func NewSimulator(seed int64) *Simulator {
	return &Simulator{
		baseTemp:     21,
		baseHumidity: 55,
		soilMoisture: 1200,
		rng:          rand.New(rand.NewSource(seed)),
	}
}

// Read produces the next synthetic sample. Soil moisture creeps upward
// (drier) between simulated waterings.
func (s *Simulator) Read() (types.Sample, error) {
	now := time.Now()
	hour := float64(now.Hour()) + float64(now.Minute())/60

	daily := 4 * math.Sin(2*math.Pi*(hour-6)/24)
	temp := s.baseTemp + daily + (s.rng.Float64()-0.5)*1.5
	humidity := math.Max(20, math.Min(95, s.baseHumidity-daily+(s.rng.Float64()-0.5)*4))

	var lux float64
	if hour > 6 && hour < 21 {
		lux = 12000 * math.Sin(math.Pi*(hour-6)/15)
	}

	// dry out slowly; water the plant when the probe reads very dry
	s.soilMoisture += 0.4 + s.rng.Float64()*0.3
	if s.soilMoisture > 2900 {
		s.soilMoisture = 900 + s.rng.Float64()*100
	}

	return types.Sample{
		Temperature:  float32(temp),
		Humidity:     float32(humidity),
		Lux:          float32(math.Max(0, lux)),
		SoilMoisture: float32(s.soilMoisture),
		SoilTemp1:    float32(temp - 2),
		Shape:        types.ShapeBasic,
	}, nil
}
