package gridfence

import (
	"encoding/binary"
)

const (
	featurePrefix = 'F'
	infoKey       = 'i'
)

// FeatureKey is the storage key of a feature record in a snapshot.
func FeatureKey(id FeatureID) []byte {
	k := make([]byte, 1+8)
	k[0] = featurePrefix
	binary.BigEndian.PutUint64(k[1:], uint64(id))
	return k
}

// FeatureKeyPrefix prefixes all feature record keys.
func FeatureKeyPrefix() byte {
	return featurePrefix
}

// FeatureIDFromKey reads back the id encoded by FeatureKey.
func FeatureIDFromKey(k []byte) FeatureID {
	return FeatureID(binary.BigEndian.Uint64(k[1:]))
}

func InfoKey() []byte {
	return []byte{infoKey}
}
