package sqlinline

const QSelectCredential = `--sql af49b832-6c07-4de5-91b3-28e5d0c7f1a6
select value
from app_credentials
where name = $1;
`

const QUpsertCredential = `--sql 0a49a494-8375-4ec8-82c8-47a29feff8e6
insert into app_credentials (name, value, updated_at)
values ($1, $2, now())
on conflict (name) do update
set value = excluded.value, updated_at = now();
`
