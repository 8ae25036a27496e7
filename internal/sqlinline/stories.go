// Package sqlinline holds every SQL statement the service executes. Each
// statement opens with a marker line the SQLRunner logs instead of the text.
package sqlinline

const QInsertStory = `--sql 7f3c2a10-94be-4c51-a2c6-0d5f8e1b3a77
insert into stories (
  id,
  owner_id,
  subject_name,
  subject_age,
  theme,
  title,
  text_ref,
  audio_status,
  image_status,
  created_at,
  updated_at
)
values ($1, $2, $3, $4, $5, $6, $7, 'pending', 'pending', $8, $8);
`

const QSelectStoryByID = `--sql 1bd4e8c3-52aa-47f9-9d0e-6c1a2f84b590
select
  id,
  owner_id,
  subject_name,
  subject_age,
  theme,
  title,
  text_ref,
  audio_status,
  audio_ref,
  image_status,
  image_ref,
  created_at,
  updated_at
from stories
where id = $1;
`

const QListStoriesByOwner = `--sql 9a76f1d2-08cb-4e35-b417-3d92c5e0a8f1
select
  id,
  owner_id,
  subject_name,
  subject_age,
  theme,
  title,
  text_ref,
  audio_status,
  audio_ref,
  image_status,
  image_ref,
  created_at,
  updated_at
from stories
where owner_id = $1
order by created_at desc;
`

const QScanStories = `--sql c2e95b04-6d13-48af-8b72-f40a1c6d9e25
select
  id,
  owner_id,
  subject_name,
  subject_age,
  theme,
  title,
  text_ref,
  audio_status,
  audio_ref,
  image_status,
  image_ref,
  created_at,
  updated_at
from stories;
`

// The mark statements are conditional on the field still being pending. A
// redelivered event or a crashed-and-retried worker therefore cannot
// overwrite a terminal status, and neither worker can touch the other's
// columns.

const QMarkAudioComplete = `--sql 4e81d7a9-3f26-4b04-95c8-a12d0b6e7f38
update stories
set audio_status = 'complete', audio_ref = $2, updated_at = $3
where id = $1 and audio_status = 'pending';
`

const QMarkAudioError = `--sql d05a3c18-7be4-4f92-8160-59e7f2a4c8b3
update stories
set audio_status = 'error', updated_at = $2
where id = $1 and audio_status = 'pending';
`

const QMarkImageComplete = `--sql 67b2f4ce-1a95-40d8-bc03-7e58a9d1f624
update stories
set image_status = 'complete', image_ref = $2, updated_at = $3
where id = $1 and image_status = 'pending';
`

const QMarkImageError = `--sql 38c6e0b5-924f-47a1-bd76-04f3a8c25d19
update stories
set image_status = 'error', updated_at = $2
where id = $1 and image_status = 'pending';
`
