package journal

import "math/rand/v2"

var decorTypes = []DecorType{DecorTape, DecorPin, DecorClip, DecorWashi}

// RandomDecor picks a decoration style for a new entry.
func RandomDecor() DecorType {
	return decorTypes[rand.IntN(len(decorTypes))]
}

// RandomRotation returns a rotation angle in [-3, 3) degrees.
func RandomRotation() float64 {
	return (rand.Float64() - 0.5) * 6
}
