package gemini

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/BaSui01/roboforge/types"
)

func TestDecodeStats_FlatObject(t *testing.T) {
	raw := `{"name":"Onigiri Sentinel","lore":"Forged in the rice vaults.","hp":1200,"atk":60,"def":25,"visual_description":"a riceball-plated mech, full body standing"}`

	stats, err := decodeStats(raw)
	require.NoError(t, err)
	assert.Equal(t, "Onigiri Sentinel", stats.Name)
	assert.Equal(t, 1200, stats.HP)
	assert.Equal(t, 60, stats.ATK)
	assert.Equal(t, 25, stats.DEF)
	assert.Equal(t, "a riceball-plated mech, full body standing", stats.VisualDescription)
}

func TestDecodeStats_NestedWrapperIsRecovered(t *testing.T) {
	// All five fields hide under an unexpected wrapper object.
	raw := `{"robot":{"Name":"Curry Colossus","Lore":"A simmering siege engine.","stats":{"HP":1800,"ATK":90,"DEF":40},"VisualDescription":"a curry-pot torso mech"}}`

	stats, err := decodeStats(raw)
	require.NoError(t, err)
	assert.Equal(t, "Curry Colossus", stats.Name)
	assert.Equal(t, "A simmering siege engine.", stats.Lore)
	assert.Equal(t, 1800, stats.HP)
	assert.Equal(t, 90, stats.ATK)
	assert.Equal(t, 40, stats.DEF)
	assert.Equal(t, "a curry-pot torso mech", stats.VisualDescription)
}

func TestDecodeStats_MissingFieldGetsDefault(t *testing.T) {
	raw := `{"name":"Udon Walker","lore":"Noodle-cooled actuators.","hp":900,"atk":45,"visual_description":"an udon-themed biped"}`

	stats, err := decodeStats(raw)
	require.NoError(t, err)
	assert.Equal(t, "Udon Walker", stats.Name)
	assert.Equal(t, defaultDEF, stats.DEF, "missing def falls back to its documented default")
	assert.Equal(t, 900, stats.HP)
}

func TestDecodeStats_EmptyObjectGetsAllDefaults(t *testing.T) {
	stats, err := decodeStats(`{}`)
	require.NoError(t, err)
	assert.Equal(t, &types.RobotStats{
		Name:              defaultName,
		Lore:              defaultLore,
		HP:                defaultHP,
		ATK:               defaultATK,
		DEF:               defaultDEF,
		VisualDescription: defaultDescription,
	}, stats)
}

func TestDecodeStats_AlternateDescriptionKey(t *testing.T) {
	raw := `{"name":"Taco Vanguard","lore":"Crunchy armor.","hp":700,"atk":30,"def":15,"visual_description_en":"a taco-shell shield mech"}`

	stats, err := decodeStats(raw)
	require.NoError(t, err)
	assert.Equal(t, "a taco-shell shield mech", stats.VisualDescription)
}

func TestDecodeStats_ArrayWrapperIsRecovered(t *testing.T) {
	raw := `[{"name":"Gyoza Guard","lore":"Pan-seared plating.","hp":1100,"atk":55,"def":22,"visual_description":"a dumpling-domed mech"}]`

	stats, err := decodeStats(raw)
	require.NoError(t, err)
	assert.Equal(t, "Gyoza Guard", stats.Name)
	assert.Equal(t, 1100, stats.HP)
}

func TestDecodeStats_InvalidJSONFailsHard(t *testing.T) {
	_, err := decodeStats(`here is your robot: {"name": "Oops`)
	require.Error(t, err)
	assert.Equal(t, types.ErrDecodeFailed, types.GetCode(err))
}
