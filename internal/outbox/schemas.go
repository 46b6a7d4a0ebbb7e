package outbox

const stepsSyncedSchema = `{
  "type": "object",
  "title": "StepsSynced",
  "properties": {
    "user_id": {"type": "string"},
    "date": {"type": "string", "format": "date"},
    "delta": {"type": "integer"},
    "steps_count": {"type": "integer"},
    "source": {"type": "string"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "date", "delta", "steps_count", "source", "occurred_at"],
  "additionalProperties": false
}`

const userLeveledUpSchema = `{
  "type": "object",
  "title": "UserLeveledUp",
  "properties": {
    "user_id": {"type": "string"},
    "level": {"type": "integer"},
    "level_ups": {"type": "integer"},
    "total_exp": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "level", "level_ups", "total_exp", "occurred_at"],
  "additionalProperties": false
}`

const journeyCompletedSchema = `{
  "type": "object",
  "title": "JourneyCompleted",
  "properties": {
    "user_id": {"type": "string"},
    "journey_id": {"type": "string"},
    "total_distance_miles": {"type": "number"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["user_id", "journey_id", "total_distance_miles", "occurred_at"],
  "additionalProperties": false
}`

const bossDefeatedSchema = `{
  "type": "object",
  "title": "BossDefeated",
  "properties": {
    "boss_id": {"type": "string"},
    "user_id": {"type": "string"},
    "boss_type": {"type": "string"},
    "exp_reward": {"type": "integer"},
    "occurred_at": {"type": "string", "format": "date-time"}
  },
  "required": ["boss_id", "user_id", "boss_type", "exp_reward", "occurred_at"],
  "additionalProperties": false
}`
